package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const envPrefix = "INFOSTORE_"

var (
	configFilePaths = []string{
		"/etc/lumeweb/infostore/config.yaml",
		"/etc/lumeweb/infostore/config.yml",
		"$HOME/.lumeweb/infostore/config.yaml",
		"$HOME/.lumeweb/infostore/config.yml",
		"./infostore.yaml",
		"./infostore.yml",
	}
	errConfigFileNotFound = errors.New("config file not found")
)

var _ Manager = (*ManagerDefault)(nil)

type Config struct {
	Core CoreConfig `mapstructure:"core"`
}

type ManagerDefault struct {
	config     *koanf.Koanf
	root       *Config
	configFile string
	changes    bool
	logger     *zap.Logger
}

// NewManager loads configFile, or the first file found in the default search
// paths when configFile is empty. A missing file is not an error: defaults are
// written to it on Init.
func NewManager(configFile string) (*ManagerDefault, error) {
	if configFile == "" {
		configFile = findConfigFile(false, false)
	}

	k, err := newConfig(configFile)
	if err != nil && !errors.Is(err, errConfigFileNotFound) {
		return nil, err
	}

	exists := err == nil

	if !exists && configFile == "" {
		configFile = findConfigFile(true, false)
	}

	return &ManagerDefault{
		config:     k,
		configFile: configFile,
		changes:    !exists,
		logger:     zap.NewNop(),
	}, nil
}

func (m *ManagerDefault) hooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		cacheConfigHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	}
}

func (m *ManagerDefault) Init() error {
	m.root = &Config{}

	err := m.setDefaultsForObject(m.root.Core, "core")
	if err != nil {
		return err
	}
	err = m.maybeSave()
	if err != nil {
		return err
	}

	// Environment overrides are loaded after saving so secrets passed through
	// the environment never end up in the config file.
	err = m.config.Load(env.Provider(envPrefix, ".", envKey), nil)
	if err != nil {
		return err
	}

	err = m.config.UnmarshalWithConf("", &m.root, koanf.UnmarshalConf{
		Tag: "mapstructure",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(m.hooks()...),
			Metadata:         nil,
			Result:           &m.root,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return err
	}

	return m.validateObject(m.root)
}

func (m *ManagerDefault) setDefaultsForObject(obj interface{}, prefix string) error {
	objValue := reflect.ValueOf(obj)
	objType := reflect.TypeOf(obj)

	if objValue.Kind() == reflect.Ptr {
		objValue = objValue.Elem()
		objType = objType.Elem()
	}

	if setter, ok := obj.(Defaults); ok {
		err := m.applyDefaults(setter, prefix)
		if err != nil {
			return err
		}
	}

	for i := 0; i < objValue.NumField(); i++ {
		field := objValue.Field(i)
		fieldType := objType.Field(i)

		if !field.CanInterface() {
			continue
		}

		mapstructureTag := fieldType.Tag.Get("mapstructure")

		newPrefix := prefix
		if mapstructureTag != "" && mapstructureTag != "-" {
			if newPrefix != "" {
				newPrefix += "."
			}
			newPrefix += mapstructureTag
		}

		if field.Kind() == reflect.Struct {
			err := m.setDefaultsForObject(field.Interface(), newPrefix)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *ManagerDefault) validateObject(obj interface{}) error {
	objValue := reflect.ValueOf(obj)

	if objValue.Kind() == reflect.Ptr {
		objValue = objValue.Elem()
	}

	if validator, ok := obj.(Validator); ok {
		err := validator.Validate()
		if err != nil {
			return err
		}
	}

	for i := 0; i < objValue.NumField(); i++ {
		field := objValue.Field(i)

		if !field.CanInterface() {
			continue
		}

		if field.Kind() == reflect.Struct {
			err := m.validateObject(field.Interface())
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *ManagerDefault) applyDefaults(setter Defaults, prefix string) error {
	defaults := setter.Defaults()
	for key, value := range defaults {
		fullKey := key
		if prefix != "" {
			fullKey = fmt.Sprintf("%s.%s", prefix, key)
		}
		ret, err := m.setDefault(fullKey, value)
		if err != nil {
			return err
		}

		if ret {
			m.changes = true
		}
	}

	return nil
}

func (m *ManagerDefault) setDefault(key string, value interface{}) (bool, error) {
	if !m.config.Exists(key) {
		err := m.config.Set(key, value)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

func (m *ManagerDefault) maybeSave() error {
	if !m.changes {
		return nil
	}

	if m.configFile == "" {
		m.logger.Debug("no writable config location, keeping defaults in memory")
		return nil
	}

	data, err := m.config.Marshal(yaml.Parser())
	if err != nil {
		return err
	}

	err = os.MkdirAll(path.Dir(m.configFile), 0755)
	if err != nil {
		return err
	}

	err = os.WriteFile(m.configFile, data, 0600)
	if err != nil {
		return err
	}

	m.logger.Info("wrote config defaults", zap.String("file", m.configFile))
	m.changes = false

	return nil
}

func (m *ManagerDefault) Config() *Config {
	return m.root
}

func (m *ManagerDefault) Save() error {
	m.changes = true
	return m.maybeSave()
}

func (m *ManagerDefault) ConfigFile() string {
	return m.configFile
}

func (m *ManagerDefault) SetLogger(logger *zap.Logger) {
	m.logger = logger
}

func newConfig(configFile string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if configFile == "" {
		return k, errConfigFileNotFound
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return k, errConfigFileNotFound
	}

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, err
	}

	return k, nil
}

// envKey maps INFOSTORE_CORE__STORE__POSTGRES__PASSWORD to core.store.postgres.password.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func findConfigFile(dirCheck bool, ignoreExist bool) string {
	for _, _path := range configFilePaths {
		expandedPath := os.ExpandEnv(_path)
		_, err := os.Stat(expandedPath)
		if err == nil {
			return expandedPath
		} else if os.IsNotExist(err) {
			if dirCheck {
				_, err := os.Stat(path.Dir(expandedPath))
				if err == nil || ignoreExist {
					return expandedPath
				}
			}
		}
	}

	return ""
}
