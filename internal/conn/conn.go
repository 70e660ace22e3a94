// Package conn manages the PostgreSQL connection lifecycle. A Provider
// lazily opens one pooled handle, verifies it before handing it out, and
// reopens once when a cached handle has gone stale. Callers never hold the
// handle directly; they borrow an executor for the duration of a callback.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"pagesync/internal/dbexec"
	"pagesync/internal/sqlerr"
)

// Config carries everything needed to reach the database.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the config as a postgres URL for the pgx stdlib driver.
// Credentials are URL-escaped so passwords with reserved characters survive.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Redacted is the DSN with the password masked, safe for logs.
func (c Config) Redacted() string {
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	return masked.DSN()
}

// Provider hands out verified database executors.
type Provider struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewProvider creates a provider. No connection is opened until first use.
func NewProvider(cfg Config, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{cfg: cfg, log: log}
}

// DB returns the shared handle, opening it on first use. A cached handle
// that fails its liveness check is discarded and reopened exactly once.
func (p *Provider) DB(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		if err := p.db.PingContext(ctx); err == nil {
			return p.db, nil
		}
		p.log.Warn("cached database handle failed ping, reopening",
			slog.String("host", p.cfg.Host))
		p.db.Close()
		p.db = nil
	}

	db, err := open(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.db = db
	return p.db, nil
}

// WithConn runs fn with a verified executor. The handle is pooled and stays
// open across calls; fn must not retain the executor beyond its return.
func (p *Provider) WithConn(ctx context.Context, fn func(dbexec.QueryExecutor) error) error {
	db, err := p.DB(ctx)
	if err != nil {
		return err
	}
	return fn(dbexec.NewStandardExecutor(db))
}

// WithExisting runs fn against a caller-owned handle, leaving it open; the
// caller keeps ownership and closes it. A nil or dead handle falls back to
// the provider's own pooled handle.
func (p *Provider) WithExisting(ctx context.Context, db *sql.DB, fn func(dbexec.QueryExecutor) error) error {
	if db != nil {
		if err := db.PingContext(ctx); err == nil {
			return fn(dbexec.NewStandardExecutor(db))
		}
		p.log.Warn("caller-supplied handle failed ping, falling back to pooled handle",
			slog.String("host", p.cfg.Host))
	}
	return p.WithConn(ctx, fn)
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (p *Provider) WithTx(ctx context.Context, fn func(dbexec.QueryExecutor) error) (err error) {
	db, dbErr := p.DB(ctx)
	if dbErr != nil {
		return dbErr
	}
	tx, txErr := db.BeginTx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("begin transaction: %w", txErr)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(dbexec.NewTxExecutor(tx))
}

// Close releases the shared handle if one was opened.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// open dials and verifies a fresh handle. Statements run through the otelsql
// wrapper so database spans attach to whatever trace is active. Connect
// failures get one immediate retry before surfacing as ErrConnection.
func open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := otelsql.Open("pgx", cfg.DSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sqlerr.ErrConnection, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		if err = db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", sqlerr.ErrConnection, err)
		}
	}
	return db, nil
}
