package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore is the durable Storage. Ids and submission times are assigned by
// the database so several server processes can share one database.
type SQLStore struct {
	*DiskImages

	DB     *sqlx.DB
	driver string
}

var _ Storage = (*SQLStore)(nil)

// NewSQLStore connects and pings the database. Supported drivers are
// DriverSQLite (modernc, pure Go) and DriverPostgres (lib/pq).
func NewSQLStore(ctx context.Context, driver, dsn string, images *DiskImages) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One writer at a time avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return NewSQLStoreFromDB(db, images), nil
}

// NewSQLStoreFromDB wraps an existing handle; the driver name is taken from
// db.DriverName().
func NewSQLStoreFromDB(db *sqlx.DB, images *DiskImages) *SQLStore {
	return &SQLStore{DiskImages: images, DB: db, driver: db.DriverName()}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

// Now returns the database clock, used by the CLI connectivity check.
func (s *SQLStore) Now(ctx context.Context) (string, error) {
	q := "SELECT CAST(CURRENT_TIMESTAMP AS TEXT)"
	if s.driver == DriverPostgres {
		q = "SELECT CAST(NOW() AS TEXT)"
	}
	var now string
	err := s.DB.GetContext(ctx, &now, q)
	return now, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
