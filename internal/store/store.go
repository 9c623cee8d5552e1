package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/alextreichler/mayajewelry/internal/models"
)

var (
	// ErrDuplicateUsername is returned by CreateUser when the name is taken.
	ErrDuplicateUsername = errors.New("username already exists")
)

// Storage is everything the HTTP layer needs from persistence. Lookups
// return a nil record and a nil error when nothing matches.
type Storage interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, password string) (*models.User, error)

	CreateOrder(ctx context.Context, in models.OrderInput) (*models.Order, error)
	// GetOrders returns every order, newest submission first.
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// DeleteOrder reports whether a row was actually removed.
	DeleteOrder(ctx context.Context, id int64) (bool, error)
	GetOrderStats(ctx context.Context) (*models.OrderStats, error)

	SaveImage(ctx context.Context, data []byte, originalName string) (string, error)
	RemoveImage(ctx context.Context, publicPath string) error

	Ping(ctx context.Context) error
	Close() error
}

const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Options selects and configures a Storage implementation.
type Options struct {
	Backend       string // BackendSQL or BackendMemory
	Driver        string // DriverSQLite or DriverPostgres
	DSN           string
	UploadDir     string
	MaxImageWidth uint // 0 keeps uploads byte for byte
}

// Open builds the configured Storage. The SQL backend is migrated before it
// is returned.
func Open(ctx context.Context, opts Options) (Storage, error) {
	images, err := NewDiskImages(opts.UploadDir, opts.MaxImageWidth)
	if err != nil {
		return nil, err
	}

	switch opts.Backend {
	case BackendMemory:
		return NewMemStore(images), nil
	case BackendSQL, "":
		s, err := NewSQLStore(ctx, opts.Driver, opts.DSN, images)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
