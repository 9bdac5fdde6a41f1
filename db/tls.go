package db

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
	"go.lumeweb.com/infostore/config"
)

// TransportSecurity decides how every connection of a pool is secured. It is
// chosen once when the pool is built.
type TransportSecurity interface {
	Name() string
	// Apply configures the connection settings used for every dial.
	Apply(cfg *pgconn.Config) error
}

var (
	_ TransportSecurity = ConnStringTLS{}
	_ TransportSecurity = NoTLS{}
	_ TransportSecurity = (*TLS)(nil)
)

// ConnStringTLS keeps whatever the connection string's sslmode asked for,
// including its fallbacks.
type ConnStringTLS struct{}

func (ConnStringTLS) Name() string {
	return "conn-string"
}

func (ConnStringTLS) Apply(*pgconn.Config) error {
	return nil
}

type NoTLS struct{}

func (NoTLS) Name() string {
	return "none"
}

func (NoTLS) Apply(cfg *pgconn.Config) error {
	cfg.TLSConfig = nil
	pinFallbacks(cfg, func(string) *tls.Config { return nil })
	return nil
}

type TLS struct {
	Config *tls.Config
}

func (t *TLS) Name() string {
	return "tls"
}

func (t *TLS) Apply(cfg *pgconn.Config) error {
	if t.Config == nil {
		return errors.New("tls transport security without a tls config")
	}

	cfg.TLSConfig = t.forHost(cfg.Host)
	pinFallbacks(cfg, t.forHost)
	return nil
}

func (t *TLS) forHost(host string) *tls.Config {
	if isUnixSocket(host) {
		return nil
	}

	tlsConfig := t.Config.Clone()
	if tlsConfig.ServerName == "" && !tlsConfig.InsecureSkipVerify {
		tlsConfig.ServerName = host
	}
	return tlsConfig
}

// pinFallbacks keeps one fallback per alternate host of a multi-host
// connection string, secured by tlsFor. The retries pgx adds for
// sslmode=prefer and allow, which repeat a host with different TLS settings,
// are dropped so a failed handshake never downgrades silently.
func pinFallbacks(cfg *pgconn.Config, tlsFor func(host string) *tls.Config) {
	primary := hostKey(cfg.Host, cfg.Port)

	hosts := lo.UniqBy(cfg.Fallbacks, func(fb *pgconn.FallbackConfig) string {
		return hostKey(fb.Host, fb.Port)
	})
	hosts = lo.Filter(hosts, func(fb *pgconn.FallbackConfig, _ int) bool {
		return hostKey(fb.Host, fb.Port) != primary
	})

	cfg.Fallbacks = lo.Map(hosts, func(fb *pgconn.FallbackConfig, _ int) *pgconn.FallbackConfig {
		return &pgconn.FallbackConfig{
			Host:      fb.Host,
			Port:      fb.Port,
			TLSConfig: tlsFor(fb.Host),
		}
	})
}

func hostKey(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

func isUnixSocket(host string) bool {
	return strings.HasPrefix(host, "/")
}

// NewTransportSecurity builds the transport security described by cfg. An
// unset mode defers to the connection string.
func NewTransportSecurity(cfg config.TLSConfig) (TransportSecurity, error) {
	switch cfg.Mode {
	case "":
		return ConnStringTLS{}, nil
	case config.TLSModeDisable:
		return NoTLS{}, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: cfg.ServerName,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	switch cfg.Mode {
	case config.TLSModeRequire:
		tlsConfig.InsecureSkipVerify = true
	case config.TLSModeVerifyCA:
		// Chain is verified, host name is not.
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyPeerCertificate = verifyChain(tlsConfig.RootCAs)
	case config.TLSModeVerifyFull:
	default:
		return nil, fmt.Errorf("unsupported tls mode %q", cfg.Mode)
	}

	return &TLS{Config: tlsConfig}, nil
}

func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("server presented no certificates")
		}

		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs = append(certs, cert)
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}

		_, err := certs[0].Verify(opts)
		return err
	}
}
