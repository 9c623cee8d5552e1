package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alextreichler/mayajewelry/internal/models"
)

const orderColumns = `id, full_name, email, phone, jewelry_type, description, image_path, submitted_at`

type orderRow struct {
	ID          int64          `db:"id"`
	FullName    string         `db:"full_name"`
	Email       string         `db:"email"`
	Phone       string         `db:"phone"`
	JewelryType string         `db:"jewelry_type"`
	Description string         `db:"description"`
	ImagePath   sql.NullString `db:"image_path"`
	SubmittedAt dbTime         `db:"submitted_at"`
}

func (r orderRow) order() models.Order {
	o := models.Order{
		ID:          r.ID,
		FullName:    r.FullName,
		Email:       r.Email,
		Phone:       r.Phone,
		JewelryType: r.JewelryType,
		Description: r.Description,
		SubmittedAt: r.SubmittedAt.Time,
	}
	if r.ImagePath.Valid && r.ImagePath.String != "" {
		p := r.ImagePath.String
		o.ImagePath = &p
	}
	return o
}

func (s *SQLStore) CreateOrder(ctx context.Context, in models.OrderInput) (*models.Order, error) {
	query := s.DB.Rebind(`
		INSERT INTO orders (full_name, email, phone, jewelry_type, description, image_path)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + orderColumns)

	var imagePath sql.NullString
	if in.ImagePath != nil && *in.ImagePath != "" {
		imagePath = sql.NullString{String: *in.ImagePath, Valid: true}
	}

	var row orderRow
	err := s.DB.QueryRowxContext(ctx, query,
		in.FullName, in.Email, in.Phone, in.JewelryType, in.Description, imagePath,
	).StructScan(&row)
	if err != nil {
		return nil, err
	}
	o := row.order()
	return &o, nil
}

func (s *SQLStore) GetOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY submitted_at DESC, id DESC`
	if err := s.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.order())
	}
	return orders, nil
}

func (s *SQLStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var row orderRow
	query := s.DB.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE id = ?`)
	if err := s.DB.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o := row.order()
	return &o, nil
}

func (s *SQLStore) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM orders WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
