package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/herdstream/internal/repository"
)

// NewStore wires every Postgres-backed repository onto one pool.
func NewStore(pool *pgxpool.Pool) *repository.Store {
	return &repository.Store{
		Users:         NewUserStore(pool),
		Animals:       NewAnimalStore(pool),
		Incidents:     NewIncidentStore(pool),
		Treatments:    NewTreatmentStore(pool),
		Events:        NewEventStore(pool),
		Groups:        NewGroupStore(pool),
		Notifications: NewNotificationStore(pool),
		AuditLogs:     NewAuditLogStore(pool),
	}
}
