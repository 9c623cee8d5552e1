package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alextreichler/mayajewelry/internal/models"
)

type userRow struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Password string `db:"password"`
}

func (r userRow) user() *models.User {
	return &models.User{ID: r.ID, Username: r.Username, Password: r.Password}
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password FROM users WHERE id = ?`, id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password FROM users WHERE username = ?`, username)
}

func (s *SQLStore) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var row userRow
	if err := s.DB.GetContext(ctx, &row, s.DB.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.user(), nil
}

// CreateUser is mainly for seeding the initial admin and the CLI.
func (s *SQLStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	query := s.DB.Rebind(`INSERT INTO users (username, password) VALUES (?, ?) RETURNING id`)
	u := &models.User{Username: username, Password: password}
	if err := s.DB.QueryRowxContext(ctx, query, username, password).Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return u, nil
}
