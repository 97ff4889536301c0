package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	_ "github.com/lib/pq"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders into the numbered form PostgreSQL expects.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB wraps a SQLite or PostgreSQL connection pool.
type DB struct {
	conn     *sql.DB
	path     string
	dialect  dialect
	maxLimit int
	logger   hclog.Logger
}

// Option configures a DB at open time.
type Option func(*DB)

// WithLogger sets the logger used for migrations and ingestion writes.
func WithLogger(l hclog.Logger) Option {
	return func(db *DB) { db.logger = l.Named("database") }
}

// WithMaxLimit caps the page size accepted by SearchDramas.
func WithMaxLimit(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.maxLimit = n
		}
	}
}

func newDB(conn *sql.DB, path string, d dialect, opts []Option) *DB {
	db := &DB{
		conn:     conn,
		path:     path,
		dialect:  d,
		maxLimit: MaxLimit,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string, opts ...Option) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := newDB(conn, dbPath, dialectSQLite, opts)
	if err := migrate(conn, db.dialect, db.logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return db, nil
}

// OpenPostgres connects to PostgreSQL, retrying the initial ping while the
// server comes up.
func OpenPostgres(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = conn.Ping(); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := newDB(conn, "", dialectPostgres, opts)
	if err := migrate(conn, db.dialect, db.logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path, empty for PostgreSQL.
func (db *DB) Path() string {
	return db.path
}

// Location describes where the data lives, for operator-facing output.
func (db *DB) Location() string {
	if db.dialect == dialectPostgres {
		return "postgres"
	}
	return db.path
}

// MaxLimit returns the largest page size SearchDramas will return.
func (db *DB) MaxLimit() int {
	return db.maxLimit
}
