// Package notify turns committed writes into live pushes and, for a few
// kinds of record, into per-user notifications.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/observ"
	"github.com/lalith-99/herdstream/internal/realtime"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

// Change actions carried in animal pushes.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Publisher delivers a typed payload to a channel. *realtime.Hub is the
// production implementation.
type Publisher interface {
	Publish(ctx context.Context, channel, msgType string, data any) error
}

// AnimalChange is the data of animal_created, animal_updated and
// animal_deleted pushes.
type AnimalChange struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
	Animal any    `json:"animal"`
}

// deletedAnimal is what remains visible of an animal after deletion.
type deletedAnimal struct {
	ID  int64  `json:"id"`
	Tag string `json:"chapeta"`
}

// BroadcastMessage is the data of a broadcast push.
type BroadcastMessage struct {
	Message   string    `json:"mensaje"`
	Category  string    `json:"tipo"`
	CreatedAt time.Time `json:"fecha_creacion"`
	SentBy    int64     `json:"enviado_por"`
}

// Emitter is called by write paths after the repository call succeeded.
// Publish failures are logged and never returned: the write already
// committed. Fan-outs to several recipients are not transactional; one
// failed insert is logged and the rest continue.
type Emitter struct {
	store  *repository.Store
	pub    Publisher
	clock  clockwork.Clock
	loc    *time.Location
	logger *zap.Logger
}

type Option func(*Emitter)

// WithClock replaces the wall clock used for the event reminder window.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Emitter) { e.clock = clock }
}

// WithLocation sets the zone whose calendar decides "today". Defaults to
// the server's local zone.
func WithLocation(loc *time.Location) Option {
	return func(e *Emitter) { e.loc = loc }
}

func NewEmitter(store *repository.Store, pub Publisher, logger *zap.Logger, opts ...Option) *Emitter {
	e := &Emitter{
		store:  store,
		pub:    pub,
		clock:  clockwork.NewRealClock(),
		loc:    time.Local,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Emitter) publish(ctx context.Context, channel, msgType string, data any) {
	if err := e.pub.Publish(ctx, channel, msgType, data); err != nil {
		e.logger.Warn("failed to publish",
			zap.String("channel", channel),
			zap.String("type", msgType),
			zap.Error(err),
		)
	}
}

// AnimalChanged pushes the change to the general animal channel and to the
// animal's own channel.
func (e *Emitter) AnimalChanged(ctx context.Context, action string, a *models.Animal) {
	change := AnimalChange{ID: a.ID, Action: action, Animal: a}
	if action == ActionDeleted {
		change.Animal = deletedAnimal{ID: a.ID, Tag: a.Tag}
	}
	msgType := "animal_" + action

	e.publish(ctx, realtime.ChannelAnimalUpdates, msgType, change)
	e.publish(ctx, realtime.AnimalChannel(a.ID), msgType, change)
}

// IncidentChanged alerts every active admin about a new incident. Updates
// and deletions are not pushed.
func (e *Emitter) IncidentChanged(ctx context.Context, action string, inc *models.Incident) {
	if action != ActionCreated {
		return
	}
	animalID := inc.AnimalID
	msg := fmt.Sprintf("Nueva incidencia detectada: %s en animal %s", inc.Kind, e.animalTag(ctx, inc.AnimalID))
	e.notifyUsers(ctx, models.RoleAdmin, msg, models.NotificationHealthAlert, &animalID, nil)
}

// TreatmentChanged informs every active admin about a new treatment.
func (e *Emitter) TreatmentChanged(ctx context.Context, action string, t *models.Treatment) {
	if action != ActionCreated {
		return
	}
	animalID := t.AnimalID
	msg := fmt.Sprintf("Nuevo tratamiento registrado: %s para %s", t.Medication, e.animalTag(ctx, t.AnimalID))
	e.notifyUsers(ctx, models.RoleAdmin, msg, models.NotificationInfo, &animalID, nil)
}

// EventChanged reminds every active user of a new event that starts today
// or tomorrow.
func (e *Emitter) EventChanged(ctx context.Context, action string, ev *models.Event) {
	if action != ActionCreated {
		return
	}
	when, soon := e.leadLabel(ev.StartsAt)
	if !soon {
		return
	}
	eventID := ev.ID
	msg := fmt.Sprintf("Evento programado: %s (%s)", ev.Title, when)
	e.notifyUsers(ctx, "", msg, models.NotificationReminder, nil, &eventID)
}

// leadLabel reports HOY or MAÑANA when startsAt falls on today's or
// tomorrow's calendar date.
func (e *Emitter) leadLabel(startsAt time.Time) (string, bool) {
	now := e.clock.Now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	tomorrow := today.AddDate(0, 0, 1)

	start := startsAt.In(e.loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, e.loc)
	switch {
	case day.Equal(today):
		return "HOY", true
	case day.Equal(tomorrow):
		return "MAÑANA", true
	}
	return "", false
}

// NotificationChanged pushes a new notification to its recipient.
func (e *Emitter) NotificationChanged(ctx context.Context, action string, n *models.Notification) {
	if action != ActionCreated {
		return
	}
	e.publish(ctx, realtime.UserChannel(n.UserID), realtime.TypeNotification, n)
}

// LogCreated pushes a new audit entry to connected admins.
func (e *Emitter) LogCreated(ctx context.Context, l *models.AuditLog) {
	e.publish(ctx, realtime.ChannelAdminLogs, realtime.TypeNewLog, l)
}

// Notify persists one notification and pushes it to the recipient.
func (e *Emitter) Notify(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	created, err := e.store.Notifications.Create(ctx, n)
	if err != nil {
		observ.NotificationFailures.Inc()
		return nil, fmt.Errorf("create notification: %w", err)
	}
	observ.NotificationsCreated.WithLabelValues(created.Category).Inc()
	e.NotificationChanged(ctx, ActionCreated, created)
	return created, nil
}

// Broadcast pushes message to every connected client and stores one
// informational notification per active user. It returns how many were
// stored.
func (e *Emitter) Broadcast(ctx context.Context, message string, sentBy int64) int {
	e.publish(ctx, realtime.ChannelGeneralNotifications, realtime.TypeBroadcast, BroadcastMessage{
		Message:   message,
		Category:  models.NotificationInfo,
		CreatedAt: e.clock.Now().UTC(),
		SentBy:    sentBy,
	})
	return e.notifyUsers(ctx, "", message, models.NotificationInfo, nil, nil)
}

// notifyUsers creates a notification for every active user, restricted to
// role when it is non-empty, and returns how many were stored.
func (e *Emitter) notifyUsers(ctx context.Context, role, message, category string, animalID, eventID *int64) int {
	users, err := e.store.Users.ListActive(ctx, role)
	if err != nil {
		e.logger.Error("failed to list notification recipients", zap.String("role", role), zap.Error(err))
		return 0
	}

	sent := 0
	for _, u := range users {
		_, err := e.Notify(ctx, &models.Notification{
			UserID:   u.ID,
			Message:  message,
			Category: category,
			AnimalID: animalID,
			EventID:  eventID,
		})
		if err != nil {
			e.logger.Error("failed to notify user",
				zap.Int64("user_id", u.ID),
				zap.String("category", category),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// animalTag returns the animal's ear tag, or its ID when it cannot be read.
func (e *Emitter) animalTag(ctx context.Context, animalID int64) string {
	a, err := e.store.Animals.GetByID(ctx, animalID)
	if err != nil {
		e.logger.Warn("failed to load animal for notification", zap.Int64("animal_id", animalID), zap.Error(err))
	}
	if a == nil {
		return "#" + strconv.FormatInt(animalID, 10)
	}
	return a.Tag
}
