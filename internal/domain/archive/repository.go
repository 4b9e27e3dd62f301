package archive

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository persists archives and their messages.
type Repository interface {
	Create(ctx context.Context, a *Archive) error
	GetByID(ctx context.Context, id string) (*Archive, error)
	ListByUser(ctx context.Context, userID string) ([]*Archive, error)
	Rename(ctx context.Context, id, name string) error

	AppendMessage(ctx context.Context, m *Message) error
	CountMessages(ctx context.Context, archiveID string) (int64, error)
	ListMessages(ctx context.Context, archiveID string, limit, offset int) ([]*Message, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *Archive) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Archive, error) {
	var a Archive
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByUser returns the default archive first, then newest first.
func (r *repository) ListByUser(ctx context.Context, userID string) ([]*Archive, error) {
	var out []*Archive
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}

func (r *repository) Rename(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).
		Model(&Archive{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrArchiveNotFound
	}
	return nil
}

func (r *repository) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) CountMessages(ctx context.Context, archiveID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).Where("archive_id = ?", archiveID).Count(&n).Error
	return n, err
}

// ListMessages returns messages oldest first.
func (r *repository) ListMessages(ctx context.Context, archiveID string, limit, offset int) ([]*Message, error) {
	var out []*Message
	q := r.db.WithContext(ctx).
		Where("archive_id = ?", archiveID).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	err := q.Find(&out).Error
	return out, err
}
