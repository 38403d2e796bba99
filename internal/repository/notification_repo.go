package repository

import (
	"context"
	"time"

	"formintake/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	CreateBatch(ctx context.Context, items []model.Notification) error
	ListForRecipient(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipient string, at time.Time) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, items []model.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&items).Error
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]model.Notification, error) {
	var items []model.Notification
	query := GetDB(ctx, r.db).Where("recipient_id = ?", recipient)
	if unreadOnly {
		query = query.Where("status = ?", model.NotificationUnread)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipient string) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("recipient_id = ? AND status = ?", recipient, model.NotificationUnread).
		Count(&n).Error
	return n, err
}

// MarkRead only touches notifications addressed to recipient.
func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, recipient string, at time.Time) error {
	res := GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipient).
		Updates(map[string]interface{}{"status": model.NotificationRead, "read_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound)
	}
	return nil
}
