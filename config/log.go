package config

import "fmt"

var _ Defaults = (*LogConfig)(nil)
var _ Validator = (*LogConfig)(nil)

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (l LogConfig) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"level": "info",
	}
}

func (l LogConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("core.log.level must be one of: debug, info, warn, error, got %q", l.Level)
	}
}
