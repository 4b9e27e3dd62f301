package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save stores a delivered envelope. A second delivery of the same event id
// for the same user returns ErrDuplicateDelivery.
func (r *Repository) Save(ctx context.Context, n *Received) error {
	err := r.db.WithContext(ctx).Create(n).Error
	if isUniqueViolation(err) {
		return ErrDuplicateDelivery
	}
	return err
}

// ListByUser returns the newest deliveries first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Received, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&Received{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Received
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// DeleteBefore removes log rows older than cutoff and returns how many went.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Received{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
