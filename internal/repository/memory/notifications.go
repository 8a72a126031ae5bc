package memory

import (
	"context"
	"slices"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
)

type NotificationRepo struct {
	t *table[models.Notification]
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{t: newTable[models.Notification]()}
}

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	row := *n
	row.CreatedAt = time.Now().UTC()
	row.Read = false
	created, _ := r.t.insert(row, func(v *models.Notification, id int64) { v.ID = id }, nil)
	return &created, nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	n, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &n, nil
}

// newestFirst relies on IDs increasing with insertion time.
func newestFirst(out []models.Notification) []models.Notification {
	slices.Reverse(out)
	return out
}

func (r *NotificationRepo) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	return newestFirst(r.t.filter(func(n models.Notification) bool {
		return userID == 0 || n.UserID == userID
	})), nil
}

func (r *NotificationRepo) ListUnread(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	out := newestFirst(r.t.filter(func(n models.Notification) bool {
		return n.UserID == userID && !n.Read
	}))
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	return len(r.t.filter(func(n models.Notification) bool {
		return n.UserID == userID && !n.Read
	})), nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID int64) error {
	n, ok := r.t.get(id)
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	_, err := r.t.update(id, func(old models.Notification) models.Notification {
		old.Read = true
		return old
	}, nil)
	return err
}
