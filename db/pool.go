package db

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.uber.org/zap"
)

// Pool is a bounded set of postgres connections. Connections are dialed
// lazily, so building a Pool against an unreachable server succeeds and the
// failure is reported by Acquire.
type Pool struct {
	pool     *pgxpool.Pool
	logger   *core.Logger
	security TransportSecurity
}

func NewPool(ctx context.Context, cfg config.PostgresConfig, security TransportSecurity, logger *core.Logger) (*Pool, error) {
	if security == nil {
		security = ConnStringTLS{}
	}

	p := &Pool{
		logger:   logger,
		security: security,
	}

	poolConfig, err := p.newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	p.pool = pool

	logger.Debug("postgres pool created",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.Uint16("port", poolConfig.ConnConfig.Port),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.String("transport_security", security.Name()),
		zap.Int32("max_conns", poolConfig.MaxConns))

	return p, nil
}

func (p *Pool) newPoolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres connection settings: %w", err)
	}

	if err := p.security.Apply(&poolConfig.ConnConfig.Config); err != nil {
		return nil, fmt.Errorf("apply %s transport security: %w", p.security.Name(), err)
	}

	maxConns := cfg.MaxConns
	if maxConns > math.MaxInt32 {
		maxConns = math.MaxInt32
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	poolConfig.BeforeAcquire = p.checkLiveness

	if tracer := newTracer(p.logger.Logger, p.logger.Level()); tracer != nil {
		poolConfig.ConnConfig.Tracer = tracer
	}

	return poolConfig, nil
}

// checkLiveness pings a connection before it is handed out. A
// connection failing it is destroyed and the pool dials a replacement.
func (p *Pool) checkLiveness(ctx context.Context, conn *pgx.Conn) bool {
	if err := conn.Ping(ctx); err != nil {
		p.logger.Warn("discarding postgres connection that failed liveness check", zap.Error(err))
		return false
	}

	return true
}

// Acquire blocks until a live connection is available or ctx is done. The
// caller must Release the connection.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, core.NewStorageError(core.ErrKeyConnection, "acquire", "", err)
	}

	return conn, nil
}

func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.Ping(ctx); err != nil {
		return core.NewStorageError(core.ErrKeyConnection, "ping", "", err)
	}

	return nil
}

func (p *Pool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}

func (p *Pool) TransportSecurity() TransportSecurity {
	return p.security
}

// Close waits for acquired connections to be released, then closes all of
// them and stops the pool's health checker.
func (p *Pool) Close() {
	p.pool.Close()
}
