package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
)

const notificationColumns = `id, user_id, message, category, created_at, read, animal_id, event_id`

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

func scanNotification(r row) (*models.Notification, error) {
	var n models.Notification
	err := r.Scan(
		&n.ID,
		&n.UserID,
		&n.Message,
		&n.Category,
		&n.CreatedAt,
		&n.Read,
		&n.AnimalID,
		&n.EventID,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, message, category, created_at, read, animal_id, event_id)
		VALUES ($1, $2, $3, now(), FALSE, $4, $5)
		RETURNING ` + notificationColumns

	created, err := scanNotification(s.pool.QueryRow(ctx, query,
		n.UserID, n.Message, n.Category, n.AnimalID, n.EventID))
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return created, nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	if userID == 0 {
		return s.list(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC, id DESC`)
	}
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
}

func (s *NotificationStore) ListUnread(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND NOT read
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
}

func (s *NotificationStore) list(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
