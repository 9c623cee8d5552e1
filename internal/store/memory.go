package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alextreichler/mayajewelry/internal/models"
)

// MemStore keeps users and orders in process memory. Ids come from local
// counters, which is only sound because nothing else shares the maps. It is
// meant for tests and local development.
type MemStore struct {
	*DiskImages

	mu          sync.RWMutex
	users       map[int64]models.User
	orders      map[int64]models.Order
	nextUserID  int64
	nextOrderID int64
	now         func() time.Time
}

var _ Storage = (*MemStore)(nil)

func NewMemStore(images *DiskImages) *MemStore {
	return &MemStore{
		DiskImages:  images,
		users:       make(map[int64]models.User),
		orders:      make(map[int64]models.Order),
		nextUserID:  1,
		nextOrderID: 1,
		now:         time.Now,
	}
}

func (s *MemStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *MemStore) CreateUser(_ context.Context, username, password string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return nil, ErrDuplicateUsername
		}
	}
	u := models.User{ID: s.nextUserID, Username: username, Password: password}
	s.nextUserID++
	s.users[u.ID] = u
	return &u, nil
}

func (s *MemStore) CreateOrder(_ context.Context, in models.OrderInput) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := models.Order{
		ID:          s.nextOrderID,
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		JewelryType: in.JewelryType,
		Description: in.Description,
		ImagePath:   copyPath(in.ImagePath),
		SubmittedAt: s.now().UTC(),
	}
	s.nextOrderID++
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *MemStore) GetOrders(_ context.Context) ([]models.Order, error) {
	s.mu.RLock()
	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, *cloneOrder(o))
	}
	s.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		return a.ID > b.ID
	})
	return orders, nil
}

func (s *MemStore) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (s *MemStore) DeleteOrder(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *MemStore) GetOrderStats(_ context.Context) (*models.OrderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.OrderStats{OrdersByType: make(map[string]int)}
	for _, o := range s.orders {
		stats.TotalOrders++
		stats.OrdersByType[o.JewelryType]++
		if o.ImagePath != nil {
			stats.WithImage++
		}
	}
	return stats, nil
}

func (s *MemStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemStore) Close() error { return nil }

func cloneOrder(o models.Order) *models.Order {
	o.ImagePath = copyPath(o.ImagePath)
	return &o
}

func copyPath(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}
