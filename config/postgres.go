package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var _ Defaults = (*PostgresConfig)(nil)
var _ Validator = (*PostgresConfig)(nil)

type TLSMode string

const (
	TLSModeDisable    TLSMode = "disable"
	TLSModeRequire    TLSMode = "require"
	TLSModeVerifyCA   TLSMode = "verify-ca"
	TLSModeVerifyFull TLSMode = "verify-full"
)

type PostgresConfig struct {
	// DSN, when set, takes precedence over Host, Port, User, Password and Name.
	DSN               string        `mapstructure:"dsn"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Name              string        `mapstructure:"name"`
	Schema            string        `mapstructure:"schema"`
	Table             string        `mapstructure:"table"`
	MaxConns          int           `mapstructure:"max_conns"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	TLS               TLSConfig     `mapstructure:"tls"`
}

func (p PostgresConfig) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"host":                "localhost",
		"port":                5432,
		"user":                "postgres",
		"name":                "infostore",
		"schema":              "public",
		"table":               "file_info",
		"max_conns":           100,
		"health_check_period": "1m",
	}
}

func (p PostgresConfig) Validate() error {
	if p.DSN == "" {
		if p.Host == "" {
			return errors.New("core.store.postgres.host is required")
		}
		if p.Port <= 0 || p.Port > 65535 {
			return fmt.Errorf("core.store.postgres.port out of range: %d", p.Port)
		}
		if p.Name == "" {
			return errors.New("core.store.postgres.name is required")
		}
	}
	if p.Schema == "" {
		return errors.New("core.store.postgres.schema is required")
	}
	if p.Table == "" {
		return errors.New("core.store.postgres.table is required")
	}
	if p.MaxConns <= 0 {
		return errors.New("core.store.postgres.max_conns must be positive")
	}
	if p.DSN != "" && p.TLS.Mode != "" {
		if mode := dsnSSLMode(p.DSN); mode != "" && TLSMode(mode) != p.TLS.Mode {
			return fmt.Errorf("core.store.postgres.tls.mode %q conflicts with sslmode %q in core.store.postgres.dsn", p.TLS.Mode, mode)
		}
	}

	return nil
}

// ConnString returns the DSN if set, otherwise a postgres URL built from the
// individual connection fields.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}

	// Without an explicit sslmode pgx would try TLS and then fall back to plain.
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Name,
		RawQuery: "sslmode=" + string(TLSModeDisable),
	}

	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else if p.User != "" {
		u.User = url.User(p.User)
	}

	return u.String()
}

// dsnSSLMode returns the sslmode of a URL or keyword/value connection string,
// or "" if it has none.
func dsnSSLMode(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		return u.Query().Get("sslmode")
	}

	for _, field := range strings.Fields(dsn) {
		if value, ok := strings.CutPrefix(field, "sslmode="); ok {
			return strings.Trim(value, "'")
		}
	}
	return ""
}

var _ Validator = (*TLSConfig)(nil)

// TLSConfig selects the transport security of postgres connections. An unset
// Mode keeps the sslmode of the DSN, or disables TLS when there is no DSN.
// CAFile is a PEM bundle; the system roots are used when it is empty.
type TLSConfig struct {
	Mode       TLSMode `mapstructure:"mode"`
	CAFile     string  `mapstructure:"ca_file"`
	ServerName string  `mapstructure:"server_name"`
}

func (t TLSConfig) Validate() error {
	switch t.Mode {
	case "", TLSModeDisable, TLSModeRequire, TLSModeVerifyCA, TLSModeVerifyFull:
	default:
		return errors.New("core.store.postgres.tls.mode must be one of: disable, require, verify-ca, verify-full")
	}

	return nil
}
