package memory

import (
	"context"
	"slices"

	"github.com/lalith-99/herdstream/internal/models"
)

type IncidentRepo struct {
	t *table[models.Incident]
}

func NewIncidentRepo() *IncidentRepo {
	return &IncidentRepo{t: newTable[models.Incident]()}
}

func (r *IncidentRepo) Create(ctx context.Context, i *models.Incident) (*models.Incident, error) {
	row := *i
	if row.Status == "" {
		row.Status = models.IncidentPending
	}
	created, _ := r.t.insert(row, func(v *models.Incident, id int64) { v.ID = id }, nil)
	return &created, nil
}

func (r *IncidentRepo) GetByID(ctx context.Context, id int64) (*models.Incident, error) {
	i, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r *IncidentRepo) List(ctx context.Context) ([]models.Incident, error) {
	out := r.t.filter(nil)
	slices.Reverse(out)
	return out, nil
}

func (r *IncidentRepo) Update(ctx context.Context, i *models.Incident) (*models.Incident, error) {
	updated, err := r.t.update(i.ID, func(old models.Incident) models.Incident {
		next := *i
		next.CreatedBy = old.CreatedBy
		return next
	}, nil)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *IncidentRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(id)
}

type TreatmentRepo struct {
	t *table[models.Treatment]
}

func NewTreatmentRepo() *TreatmentRepo {
	return &TreatmentRepo{t: newTable[models.Treatment]()}
}

func (r *TreatmentRepo) Create(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	created, _ := r.t.insert(*t, func(v *models.Treatment, id int64) { v.ID = id }, nil)
	return &created, nil
}

func (r *TreatmentRepo) GetByID(ctx context.Context, id int64) (*models.Treatment, error) {
	t, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *TreatmentRepo) List(ctx context.Context, administeredBy *int64) ([]models.Treatment, error) {
	out := r.t.filter(func(t models.Treatment) bool {
		if administeredBy == nil {
			return true
		}
		return t.AdministeredBy != nil && *t.AdministeredBy == *administeredBy
	})
	slices.Reverse(out)
	return out, nil
}

func (r *TreatmentRepo) Update(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	updated, err := r.t.update(t.ID, func(models.Treatment) models.Treatment { return *t }, nil)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *TreatmentRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(id)
}

type EventRepo struct {
	t *table[models.Event]
}

func NewEventRepo() *EventRepo {
	return &EventRepo{t: newTable[models.Event]()}
}

func (r *EventRepo) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	created, _ := r.t.insert(*e, func(v *models.Event, id int64) { v.ID = id }, nil)
	return &created, nil
}

func (r *EventRepo) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	e, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *EventRepo) List(ctx context.Context) ([]models.Event, error) {
	out := r.t.filter(nil)
	slices.SortStableFunc(out, func(a, b models.Event) int { return a.StartsAt.Compare(b.StartsAt) })
	return out, nil
}

func (r *EventRepo) Update(ctx context.Context, e *models.Event) (*models.Event, error) {
	updated, err := r.t.update(e.ID, func(old models.Event) models.Event {
		next := *e
		next.CreatedBy = old.CreatedBy
		return next
	}, nil)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(id)
}
