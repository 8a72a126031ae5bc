// Package memory holds map-backed repositories used by tests and by
// single-process deployments started with STORE=memory.
package memory

import (
	"slices"
	"sync"

	"github.com/lalith-99/herdstream/internal/repository"
)

// table is an auto-incrementing map of rows guarded by one RWMutex.
type table[T any] struct {
	mu     sync.RWMutex
	rows   map[int64]T
	nextID int64
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int64]T)}
}

// insert assigns the next ID through setID and stores the row. unique, when
// non-nil, is checked against every existing row under the write lock.
func (t *table[T]) insert(v T, setID func(*T, int64), unique func(existing T) bool) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if unique != nil {
		for _, existing := range t.rows {
			if unique(existing) {
				var zero T
				return zero, repository.ErrConflict
			}
		}
	}
	t.nextID++
	setID(&v, t.nextID)
	t.rows[t.nextID] = v
	return v, nil
}

func (t *table[T]) get(id int64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	return v, ok
}

// update replaces row id with the result of fn. unique is checked against
// every other row.
func (t *table[T]) update(id int64, fn func(old T) T, unique func(existing T) bool) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	old, ok := t.rows[id]
	if !ok {
		return zero, repository.ErrNotFound
	}
	if unique != nil {
		for otherID, existing := range t.rows {
			if otherID != id && unique(existing) {
				return zero, repository.ErrConflict
			}
		}
	}
	v := fn(old)
	t.rows[id] = v
	return v, nil
}

func (t *table[T]) delete(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// filter returns matching rows ordered by ID.
func (t *table[T]) filter(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int64, 0, len(t.rows))
	for id, v := range t.rows {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}

// NewStore returns a repository.Store backed entirely by memory.
func NewStore() *repository.Store {
	return &repository.Store{
		Users:         NewUserRepo(),
		Animals:       NewAnimalRepo(),
		Incidents:     NewIncidentRepo(),
		Treatments:    NewTreatmentRepo(),
		Events:        NewEventRepo(),
		Groups:        NewGroupRepo(),
		Notifications: NewNotificationRepo(),
		AuditLogs:     NewAuditLogRepo(),
	}
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.AnimalRepository       = (*AnimalRepo)(nil)
	_ repository.IncidentRepository     = (*IncidentRepo)(nil)
	_ repository.TreatmentRepository    = (*TreatmentRepo)(nil)
	_ repository.EventRepository        = (*EventRepo)(nil)
	_ repository.GroupRepository        = (*GroupRepo)(nil)
	_ repository.NotificationRepository = (*NotificationRepo)(nil)
	_ repository.AuditLogRepository     = (*AuditLogRepo)(nil)
)
