// Package audit writes the append-only change log and forwards each entry
// to connected admins.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

// Action kinds stored in AuditLog.Action.
const (
	ActionCreate      = "crear"
	ActionEdit        = "editar"
	ActionDelete      = "eliminar"
	ActionImageUpdate = "actualizar_imagen"
	ActionImageDelete = "eliminar_imagen"
)

const EntityAnimal = "animal"

// Sink receives every stored entry. *notify.Emitter implements it.
type Sink interface {
	LogCreated(ctx context.Context, l *models.AuditLog)
}

// Change is one field's value before and after an edit.
type Change struct {
	Before json.RawMessage `json:"antes"`
	After  json.RawMessage `json:"despues"`
}

type Recorder struct {
	logs   repository.AuditLogRepository
	sink   Sink
	logger *zap.Logger
}

func NewRecorder(logs repository.AuditLogRepository, sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{logs: logs, sink: sink, logger: logger}
}

// Record stores one entry and forwards it. A failure is logged and nil is
// returned; the audited write has already happened.
func (r *Recorder) Record(ctx context.Context, actorID int64, action, entity, entityID string, changes any, note string) *models.AuditLog {
	entry := &models.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	if actorID != 0 {
		entry.UserID = &actorID
	}
	if note != "" {
		entry.Note = &note
	}
	if changes != nil {
		raw, err := json.Marshal(changes)
		if err != nil {
			r.logger.Error("failed to encode audit changes", zap.String("action", action), zap.Error(err))
		} else {
			entry.Changes = raw
		}
	}

	created, err := r.logs.Create(ctx, entry)
	if err != nil {
		r.logger.Error("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entity),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return nil
	}
	if r.sink != nil {
		r.sink.LogCreated(ctx, created)
	}
	return created
}

func animalID(a *models.Animal) string {
	return strconv.FormatInt(a.ID, 10)
}

func (r *Recorder) AnimalCreated(ctx context.Context, actorID int64, a *models.Animal) {
	r.Record(ctx, actorID, ActionCreate, EntityAnimal, animalID(a), nil, "Animal creado")
}

// animalBookkeeping names fields the server rewrites on every edit. The
// editor is already the entry's UserID.
var animalBookkeeping = []string{"modificado_por"}

// AnimalUpdated records only the fields whose JSON value changed, leaving
// out server-maintained bookkeeping.
func (r *Recorder) AnimalUpdated(ctx context.Context, actorID int64, before, after *models.Animal) {
	changes, err := Diff(before, after, animalBookkeeping...)
	if err != nil {
		r.logger.Error("failed to diff animal", zap.Int64("animal_id", after.ID), zap.Error(err))
	}
	r.Record(ctx, actorID, ActionEdit, EntityAnimal, animalID(after), changes, "Actualización de animal")
}

func (r *Recorder) AnimalDeleted(ctx context.Context, actorID int64, a *models.Animal) {
	r.Record(ctx, actorID, ActionDelete, EntityAnimal, animalID(a), nil, "Animal eliminado")
}

func (r *Recorder) ImageUpdated(ctx context.Context, actorID int64, a *models.Animal) {
	note := fmt.Sprintf("Imagen actualizada para animal %s", a.Tag)
	r.Record(ctx, actorID, ActionImageUpdate, EntityAnimal, animalID(a), nil, note)
}

func (r *Recorder) ImageDeleted(ctx context.Context, actorID int64, a *models.Animal) {
	note := fmt.Sprintf("Imagen eliminada para animal %s", a.Tag)
	r.Record(ctx, actorID, ActionImageDelete, EntityAnimal, animalID(a), nil, note)
}

// Diff compares the JSON encodings of before and after field by field and
// returns the changed fields keyed by JSON name. Keys listed in ignore are
// never reported. Both must encode to JSON objects.
func Diff(before, after any, ignore ...string) (map[string]Change, error) {
	b, err := fields(before)
	if err != nil {
		return nil, err
	}
	a, err := fields(after)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]Change)
	for key, next := range a {
		prev, ok := b[key]
		if !ok {
			prev = json.RawMessage("null")
		}
		if !jsonEqual(prev, next) {
			changes[key] = Change{Before: prev, After: next}
		}
	}
	for key, prev := range b {
		if _, ok := a[key]; !ok {
			changes[key] = Change{Before: prev, After: json.RawMessage("null")}
		}
	}
	for _, key := range ignore {
		delete(changes, key)
	}
	return changes, nil
}

func fields(v any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for diff: %w", err)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("diff needs a JSON object: %w", err)
	}
	return out, nil
}

// jsonEqual compares two encodings after compacting whitespace, so stored
// JSON columns with different spacing compare equal.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
