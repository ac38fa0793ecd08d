// Package binder opens the per-request tenant database connection from
// resolved connection parameters and threads it through the request context.
package binder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"arcturus.sanger.ac.uk/internal/obs"
	"arcturus.sanger.ac.uk/internal/tenant"
)

var (
	// ErrUnsupportedAdapter indicates the directory entry named an adapter
	// kind no registered driver handles.
	ErrUnsupportedAdapter = errors.New("binder: unsupported adapter")

	// ErrConnectionFailed indicates the endpoint could not be reached or
	// rejected the credentials.
	ErrConnectionFailed = errors.New("binder: connection failed")

	// ErrNotBound indicates a data access ran outside a bound request.
	ErrNotBound = errors.New("binder: no connection bound to context")
)

// Conn is the single database connection bound to one request. It must be
// closed on every exit path once the request completes.
type Conn struct {
	db *sql.DB
	id tenant.ID
}

// NewConn wraps an already-open handle as a bound connection.
func NewConn(db *sql.DB, id tenant.ID) *Conn {
	return &Conn{db: db, id: id}
}

// DB exposes the underlying handle for record stores.
func (c *Conn) DB() *sql.DB { return c.db }

// Tenant reports which tenant the connection belongs to.
func (c *Conn) Tenant() tenant.ID { return c.id }

// Close releases the connection.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Binder opens tenant connections. Safe for concurrent use.
type Binder struct {
	pingTimeout time.Duration
}

// New builds a Binder. A zero timeout falls back to 10s.
func New(pingTimeout time.Duration) *Binder {
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	return &Binder{pingTimeout: pingTimeout}
}

// Open establishes exactly one live connection for the request. The pool is
// pinned to a single conn: the handle is the request's connection, nothing
// is shared across requests.
func (b *Binder) Open(ctx context.Context, id tenant.ID, params tenant.ConnectionParameters) (*Conn, error) {
	driver, dsn, err := b.dsn(params)
	if err != nil {
		obs.ObserveTenantBind("failed")
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		obs.ObserveTenantBind("failed")
		return nil, fmt.Errorf("%w: open %s: %v", ErrConnectionFailed, id, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, b.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		obs.ObserveTenantBind("failed")
		return nil, fmt.Errorf("%w: ping %s: %v", ErrConnectionFailed, id, err)
	}

	obs.ObserveTenantBind("ok")
	return &Conn{db: db, id: id}, nil
}

func (b *Binder) dsn(params tenant.ConnectionParameters) (driver, dsn string, err error) {
	switch params.Adapter {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = params.Username
		cfg.Passwd = params.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(params.Host, strconv.Itoa(params.Port))
		cfg.DBName = params.Database
		cfg.ParseTime = true
		cfg.Timeout = b.pingTimeout
		return "mysql", cfg.FormatDSN(), nil
	case "postgresql", "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s/%s",
			params.Username, params.Password,
			net.JoinHostPort(params.Host, strconv.Itoa(params.Port)),
			params.Database)
		return "pgx", dsn, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedAdapter, params.Adapter)
	}
}

type connContextKey struct{}

// WithConn attaches the bound connection to the request context.
func WithConn(ctx context.Context, conn *Conn) context.Context {
	return context.WithValue(ctx, connContextKey{}, conn)
}

// FromContext returns the connection bound earlier in the request.
func FromContext(ctx context.Context) (*Conn, error) {
	if conn, ok := ctx.Value(connContextKey{}).(*Conn); ok && conn != nil {
		return conn, nil
	}
	return nil, ErrNotBound
}
