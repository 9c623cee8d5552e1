package store

import (
	"context"

	"github.com/alextreichler/mayajewelry/internal/models"
)

func (s *SQLStore) GetOrderStats(ctx context.Context) (*models.OrderStats, error) {
	stats := &models.OrderStats{OrdersByType: make(map[string]int)}

	err := s.DB.QueryRowxContext(ctx,
		`SELECT COUNT(*), COUNT(image_path) FROM orders`,
	).Scan(&stats.TotalOrders, &stats.WithImage)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryxContext(ctx, `SELECT jewelry_type, COUNT(*) FROM orders GROUP BY jewelry_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var jewelryType string
		var count int
		if err := rows.Scan(&jewelryType, &count); err != nil {
			return nil, err
		}
		stats.OrdersByType[jewelryType] = count
	}
	return stats, rows.Err()
}
