package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"skill-exchange/internal/config"
	"skill-exchange/internal/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("postgres: pool not open")

// executor is the query surface shared by *pgxpool.Pool and pgx.Tx.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type conn struct {
	ex executor
}

func (c conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if c.ex == nil {
		return 0, ErrClosed
	}
	tag, err := c.ex.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query returns pgx.Rows as is; it already satisfies database.Rows.
func (c conn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	if c.ex == nil {
		return nil, ErrClosed
	}
	return c.ex.Query(ctx, query, args...)
}

func (c conn) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	if c.ex == nil {
		return errRow{err: ErrClosed}
	}
	return c.ex.QueryRow(ctx, query, args...)
}

type Pool struct {
	conn
	pool  *pgxpool.Pool
	sqlDB *sql.DB
}

var _ database.DB = (*Pool)(nil)

// Connect opens a pgx pool and checks it with a ping. At debug level every
// query is traced to log.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (database.DB, error) {
	pcfg, err := pgxpool.ParseConfig(connString(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.PoolMaxConns > 0 {
		pcfg.MaxConns = cfg.PoolMaxConns
	}
	if cfg.PoolMinConns > 0 {
		pcfg.MinConns = cfg.PoolMinConns
	}
	if cfg.PoolMaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.PoolMaxConnLifetime
	}
	if cfg.PoolMaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.PoolMaxConnIdleTime
	}
	if cfg.PoolHealthCheckPeriod > 0 {
		pcfg.HealthCheckPeriod = cfg.PoolHealthCheckPeriod
	}
	if log.GetLevel() <= zerolog.DebugLevel {
		pcfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger(log.With().Str("component", "pgx").Logger()),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	p, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, err
	}

	log.Info().
		Str("host", cfg.DBHost).
		Str("database", cfg.DBName).
		Int32("max_conns", pcfg.MaxConns).
		Msg("postgres pool ready")

	return &Pool{conn: conn{ex: p}, pool: p, sqlDB: stdlib.OpenDBFromPool(p)}, nil
}

// connString builds a keyword/value DSN, quoting values so passwords with
// spaces or quotes survive.
func connString(cfg config.DatabaseConfig) string {
	pairs := []struct{ k, v string }{
		{"host", strings.TrimSpace(cfg.DBHost)},
		{"port", strings.TrimSpace(cfg.DBPort)},
		{"user", strings.TrimSpace(cfg.DBUser)},
		{"password", cfg.DBPassword},
		{"dbname", strings.TrimSpace(cfg.DBName)},
		{"sslmode", strings.TrimSpace(cfg.DBSSLMode)},
	}
	var b strings.Builder
	for _, p := range pairs {
		if p.v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.k)
		b.WriteString("='")
		b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(p.v))
		b.WriteByte('\'')
	}
	return b.String()
}

func queryLogger(log zerolog.Logger) tracelog.LoggerFunc {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		var evt *zerolog.Event
		switch level {
		case tracelog.LogLevelError:
			evt = log.Error()
		case tracelog.LogLevelWarn:
			evt = log.Warn()
		case tracelog.LogLevelInfo:
			evt = log.Info()
		default:
			evt = log.Debug()
		}
		evt.Fields(data).Msg(msg)
	}
}

// Stats reports pool usage for the health endpoint.
func (p *Pool) Stats() database.PoolStats {
	if p == nil || p.pool == nil {
		return database.PoolStats{}
	}
	st := p.pool.Stat()
	return database.PoolStats{
		TotalConns:    st.TotalConns(),
		IdleConns:     st.IdleConns(),
		AcquiredConns: st.AcquiredConns(),
		MaxConns:      st.MaxConns(),
	}
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return ErrClosed
	}
	return p.pool.Ping(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.pool == nil {
		return nil
	}
	var err error
	if p.sqlDB != nil {
		err = p.sqlDB.Close()
	}
	p.pool.Close()
	return err
}

func (p *Pool) Begin(ctx context.Context) (database.Tx, error) {
	if p == nil || p.pool == nil {
		return nil, ErrClosed
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &poolTx{conn: conn{ex: tx}, tx: tx}, nil
}

// SQLDB exposes the pool through database/sql for the migration runner and
// prepared statements.
func (p *Pool) SQLDB() *sql.DB {
	if p == nil {
		return nil
	}
	return p.sqlDB
}

type poolTx struct {
	conn
	tx pgx.Tx
}

func (t *poolTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback after Commit is a no-op, so it is safe to defer.
func (t *poolTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
