package config

import "go.uber.org/zap"

// Defaults is implemented by config sections that seed missing keys. Keys are
// relative to the section's own prefix.
type Defaults interface {
	Defaults() map[string]any
}

type Validator interface {
	Validate() error
}

type Manager interface {
	Init() error
	Config() *Config
	ConfigFile() string
	Save() error
	SetLogger(logger *zap.Logger)
}
