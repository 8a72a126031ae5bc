package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
)

// ErrNotFound is returned by Update, Delete and MarkRead style methods when
// the target row does not exist. Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique column (email, ear tag, group name)
// already holds the value being written.
var ErrConflict = errors.New("conflict")

// UserRepository handles accounts.
type UserRepository interface {
	// Create inserts a user and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, u *models.User) (*models.User, error)

	// GetByID returns nil, nil if the user does not exist.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail is used for login. Returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	List(ctx context.Context) ([]models.User, error)

	// ListActive returns active users, restricted to one role when role != "".
	ListActive(ctx context.Context, role string) ([]models.User, error)

	Update(ctx context.Context, u *models.User) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
}

// AnimalRepository handles livestock records.
type AnimalRepository interface {
	Create(ctx context.Context, a *models.Animal) (*models.Animal, error)
	GetByID(ctx context.Context, id int64) (*models.Animal, error)
	List(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, error)
	Update(ctx context.Context, a *models.Animal) (*models.Animal, error)
	Delete(ctx context.Context, id int64) error

	// SetPhotoURL replaces the profile image URL; nil clears it.
	SetPhotoURL(ctx context.Context, id int64, url *string, modifiedBy int64) (*models.Animal, error)
}

type IncidentRepository interface {
	Create(ctx context.Context, i *models.Incident) (*models.Incident, error)
	GetByID(ctx context.Context, id int64) (*models.Incident, error)
	List(ctx context.Context) ([]models.Incident, error)
	Update(ctx context.Context, i *models.Incident) (*models.Incident, error)
	Delete(ctx context.Context, id int64) error
}

type TreatmentRepository interface {
	Create(ctx context.Context, t *models.Treatment) (*models.Treatment, error)
	GetByID(ctx context.Context, id int64) (*models.Treatment, error)

	// List returns every treatment when administeredBy is nil, otherwise only
	// the ones that user administered.
	List(ctx context.Context, administeredBy *int64) ([]models.Treatment, error)
	Update(ctx context.Context, t *models.Treatment) (*models.Treatment, error)
	Delete(ctx context.Context, id int64) error
}

type EventRepository interface {
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) (*models.Event, error)
	Delete(ctx context.Context, id int64) error
}

type GroupRepository interface {
	Create(ctx context.Context, g *models.Group) (*models.Group, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Update(ctx context.Context, g *models.Group) (*models.Group, error)
	Delete(ctx context.Context, id int64) error
}

// NotificationRepository persists per-user notifications. Rows are never
// edited except for the read flag.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	GetByID(ctx context.Context, id int64) (*models.Notification, error)

	// List returns notifications newest first; userID == 0 means every user.
	List(ctx context.Context, userID int64) ([]models.Notification, error)

	// ListUnread returns at most limit unread notifications for a user,
	// newest first.
	ListUnread(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)

	// MarkRead flips the read flag on a notification owned by userID.
	// Returns ErrNotFound if no such notification belongs to the user.
	MarkRead(ctx context.Context, id, userID int64) error
}

// AuditLogRepository is append-only: there is no Update or Delete.
type AuditLogRepository interface {
	Create(ctx context.Context, l *models.AuditLog) (*models.AuditLog, error)

	// List returns logs newest first, capped at filter.Limit.
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
}

// Store bundles every repository so callers can be wired from one value.
type Store struct {
	Users         UserRepository
	Animals       AnimalRepository
	Incidents     IncidentRepository
	Treatments    TreatmentRepository
	Events        EventRepository
	Groups        GroupRepository
	Notifications NotificationRepository
	AuditLogs     AuditLogRepository
}
