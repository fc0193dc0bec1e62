package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/postpilot/postpilot/internal/config"
)

const (
	driverLibsql = "libsql"
	driverSQLite = "sqlite"

	busyTimeoutMillis = 5000
)

// Store wraps the database connection for PostPilot.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open initializes a store connection using the provided configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		dsn   string
		local bool
		err   error
	)
	switch driver {
	case driverLibsql:
		dsn, local, err = buildLibsqlDSN(cfg)
	case driverSQLite:
		dsn, err = buildSQLiteDSN(cfg)
		local = true
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	// Local files and :memory: databases are single-writer; one connection
	// keeps an in-memory database alive and avoids SQLITE_BUSY between pooled
	// connections.
	if local {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	if local && !isMemoryDSN(dsn) {
		if err := configureLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, driver: driver}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// ErrNotOpen is returned by methods called on a nil or closed-over Store.
var ErrNotOpen = errors.New("store is not open")

// ready guards every query method and substitutes a background context for nil.
func (s *Store) ready(ctx context.Context) (context.Context, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotOpen
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, nil
}

// affected runs a write and returns the rows it touched, wrapping errors with op.
func affected(ctx context.Context, q queryer, op, query string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return s.DB.PingContext(ctx)
}

func configureLocal(ctx context.Context, db *sql.DB) error {
	// PRAGMA assignments return a row in SQLite; scan instead of Exec so both
	// drivers accept them.
	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	var timeout int
	if err := db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)).Scan(&timeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func buildLibsqlDSN(cfg config.StoreConfig) (dsn string, local bool, err error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err = addAuthToken(raw, cfg.AuthToken)
		return dsn, false, err
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", false, errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, true, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", false, err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", false, err
		}
		return path, true, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, false, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", false, err
	}
	return "file:" + filepath.Clean(path), true, nil
}

func buildSQLiteDSN(cfg config.StoreConfig) (string, error) {
	if strings.TrimSpace(cfg.URL) != "" {
		return "", errors.New("sqlite driver supports local paths only")
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}

	localPath := path
	if strings.HasPrefix(path, "file:") {
		var err error
		localPath, err = extractFilePath(path)
		if err != nil {
			return "", err
		}
	}
	if err := ensureStoreDir(localPath); err != nil {
		return "", err
	}
	return filepath.Clean(localPath), nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
