package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/database"
)

// Pool manages a MySQL connection pool.
type Pool struct {
	db *sql.DB
}

var (
	globalPool *Pool
	poolMu     sync.RWMutex
)

// NewPool creates a new MySQL connection pool. Timestamp columns are
// scanned into time.Time, so parseTime is forced on regardless of the
// DSN the operator provides.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	dsnCfg, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	dsnCfg.ParseTime = true

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// SetGlobalPool sets the global pool instance.
func SetGlobalPool(p *Pool) {
	poolMu.Lock()
	defer poolMu.Unlock()
	globalPool = p
}

// GetGlobalPool returns the global pool instance.
func GetGlobalPool() *Pool {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return globalPool
}

// IsAvailable returns true if a global pool is configured.
func IsAvailable() bool {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return globalPool != nil
}

// QueryRow executes a query that returns a single row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// Exec executes a query that doesn't return rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// photosSchema is the full photos table. MySQL has no vector type, so the
// luma vector is stored as JSON and near-duplicate matching runs on the
// perceptual hash instead. Indexes live inline so the statement stays
// idempotent under IF NOT EXISTS.
const photosSchema = `
CREATE TABLE IF NOT EXISTS photos (
	id CHAR(36) PRIMARY KEY,
	original_name VARCHAR(512) NOT NULL,
	mime VARCHAR(64) NOT NULL,
	status VARCHAR(16) NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category VARCHAR(64) NOT NULL,
	keywords JSON NOT NULL,
	quality_score INT NOT NULL DEFAULT 0,
	quality_issues JSON NOT NULL,
	error TEXT NOT NULL,
	phash CHAR(16) NULL,
	dhash CHAR(16) NULL,
	fingerprint JSON NULL,
	uploaded_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	analyzed_at TIMESTAMP(6) NULL,
	INDEX idx_photos_status (status),
	INDEX idx_photos_uploaded_at (uploaded_at),
	INDEX idx_photos_phash (phash)
)`

// ensureSchema creates the photos table when it does not exist yet.
func (p *Pool) ensureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, photosSchema); err != nil {
		return fmt.Errorf("creating photos table: %w", err)
	}
	return nil
}

// Initialize sets up the MySQL backend and registers it as the active
// storage backend.
func Initialize(cfg *config.DatabaseConfig) error {
	if cfg == nil || cfg.URL == "" {
		return errors.New("database URL is required")
	}

	pool, err := NewPool(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MySQL pool: %w", err)
	}

	if err := pool.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	SetGlobalPool(pool)

	repo := NewPhotoRepository(pool)
	database.RegisterStore("mysql", func() database.PhotoStore { return repo })
	return nil
}
