package db

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:              "127.0.0.1",
		Port:              1,
		User:              "postgres",
		Name:              "infostore",
		Schema:            "public",
		Table:             "file_info",
		MaxConns:          7,
		HealthCheckPeriod: 30 * time.Second,
	}
}

func TestPoolConfig(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	p := &Pool{logger: logger, security: NoTLS{}}

	poolConfig, err := p.newPoolConfig(testPostgresConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(7), poolConfig.MaxConns)
	assert.Equal(t, 30*time.Second, poolConfig.HealthCheckPeriod)
	assert.Equal(t, "127.0.0.1", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(1), poolConfig.ConnConfig.Port)
	assert.Equal(t, "infostore", poolConfig.ConnConfig.Database)
	assert.Nil(t, poolConfig.ConnConfig.TLSConfig)
	assert.Empty(t, poolConfig.ConnConfig.Fallbacks)
	assert.NotNil(t, poolConfig.BeforeAcquire)
	assert.NotNil(t, poolConfig.ConnConfig.Tracer)
}

func TestPoolConfigDSN(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)))
	p := &Pool{logger: logger, security: NoTLS{}}

	cfg := testPostgresConfig()
	cfg.DSN = "postgres://other@db.example.com:6543/uploads?sslmode=require"

	poolConfig, err := p.newPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.example.com", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(6543), poolConfig.ConnConfig.Port)
	assert.Equal(t, "uploads", poolConfig.ConnConfig.Database)
	assert.Nil(t, poolConfig.ConnConfig.TLSConfig, "an explicit disable overrides the sslmode")
	assert.Empty(t, poolConfig.ConnConfig.Fallbacks)
	assert.Nil(t, poolConfig.ConnConfig.Tracer)
}

func TestPoolConfigKeepsDSNSSLMode(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))

	cfg := testPostgresConfig()
	cfg.DSN = "postgres://other@db.example.com:6543/uploads?sslmode=verify-full"

	security, err := NewTransportSecurity(cfg.TLS)
	require.NoError(t, err)

	p := &Pool{logger: logger, security: security}
	poolConfig, err := p.newPoolConfig(cfg)
	require.NoError(t, err)

	require.NotNil(t, poolConfig.ConnConfig.TLSConfig)
	assert.Equal(t, "db.example.com", poolConfig.ConnConfig.TLSConfig.ServerName)
	assert.False(t, poolConfig.ConnConfig.TLSConfig.InsecureSkipVerify)
	assert.Empty(t, poolConfig.ConnConfig.Fallbacks)
}

func TestPoolConfigWithoutDSNIsPlaintext(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))

	security, err := NewTransportSecurity(config.TLSConfig{})
	require.NoError(t, err)

	p := &Pool{logger: logger, security: security}
	poolConfig, err := p.newPoolConfig(testPostgresConfig())
	require.NoError(t, err)

	assert.Nil(t, poolConfig.ConnConfig.TLSConfig)
	assert.Empty(t, poolConfig.ConnConfig.Fallbacks, "no plaintext retry after a failed handshake")
}

func TestPoolConfigInvalidDSN(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	p := &Pool{logger: logger, security: NoTLS{}}

	cfg := testPostgresConfig()
	cfg.DSN = "postgres://localhost:notaport/infostore"

	_, err := p.newPoolConfig(cfg)
	require.Error(t, err)
}

func TestPoolUnreachable(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))

	pool, err := NewPool(context.Background(), testPostgresConfig(), nil, logger)
	require.NoError(t, err, "building a pool must not dial")
	defer pool.Close()

	assert.Equal(t, "conn-string", pool.TransportSecurity().Name())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, core.ErrConnection)

	err = pool.Ping(ctx)
	require.ErrorIs(t, err, core.ErrConnection)

	assert.Equal(t, int32(0), pool.Stat().TotalConns())
}

// fakeServer speaks just enough of the postgres protocol for pgx to connect
// and ping. Connections whose accept number is in broken are dropped on their
// first query.
type fakeServer struct {
	ln     net.Listener
	broken map[int]bool

	mu       sync.Mutex
	accepted int
}

func newFakeServer(t *testing.T, broken ...int) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s := &fakeServer{ln: ln, broken: make(map[int]bool)}
	for _, n := range broken {
		s.broken[n] = true
	}

	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.accepted++
		n := s.accepted
		s.mu.Unlock()

		go s.handle(conn, s.broken[n])
	}
}

func (s *fakeServer) handle(conn net.Conn, broken bool) {
	defer conn.Close()

	backend := pgproto3.NewBackend(conn, conn)
	if _, err := backend.ReceiveStartupMessage(); err != nil {
		return
	}

	backend.Send(&pgproto3.AuthenticationOk{})
	backend.Send(&pgproto3.BackendKeyData{ProcessID: 1, SecretKey: 1})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	if err := backend.Flush(); err != nil {
		return
	}

	for {
		msg, err := backend.Receive()
		if err != nil {
			return
		}

		switch msg.(type) {
		case *pgproto3.Query:
			if broken {
				return
			}
			backend.Send(&pgproto3.EmptyQueryResponse{})
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
			if err := backend.Flush(); err != nil {
				return
			}
		case *pgproto3.Terminate:
			return
		}
	}
}

func (s *fakeServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *fakeServer) config() config.PostgresConfig {
	cfg := testPostgresConfig()
	cfg.Port = s.ln.Addr().(*net.TCPAddr).Port
	return cfg
}

func TestLivenessCheckRejectsClosedConnection(t *testing.T) {
	server := newFakeServer(t)
	p := &Pool{logger: core.NewLoggerFromZap(zaptest.NewLogger(t))}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connConfig, err := pgx.ParseConfig(server.config().ConnString())
	require.NoError(t, err)

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	require.NoError(t, err)

	assert.True(t, p.checkLiveness(ctx, conn))

	require.NoError(t, conn.Close(ctx))
	assert.False(t, p.checkLiveness(ctx, conn))
}

func TestPoolAcquireReplacesDeadConnection(t *testing.T) {
	server := newFakeServer(t, 1)
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, server.config(), NoTLS{}, logger)
	require.NoError(t, err)
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err, "a connection failing the liveness check must be replaced")
	defer conn.Release()

	require.NoError(t, conn.Ping(ctx))
	assert.Equal(t, 2, server.Accepted())

	stat := pool.Stat()
	assert.Equal(t, int64(2), stat.NewConnsCount())
	assert.Equal(t, int32(1), stat.TotalConns())
	assert.Equal(t, int32(1), stat.AcquiredConns())
}
