package memory

import (
	"context"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
)

type AnimalRepo struct {
	t *table[models.Animal]
}

func NewAnimalRepo() *AnimalRepo {
	return &AnimalRepo{t: newTable[models.Animal]()}
}

func sameTag(tag string) func(models.Animal) bool {
	return func(a models.Animal) bool { return a.Tag == tag }
}

func (r *AnimalRepo) Create(ctx context.Context, a *models.Animal) (*models.Animal, error) {
	row := *a
	if row.RegisteredAt.IsZero() {
		row.RegisteredAt = time.Now().UTC()
	}
	created, err := r.t.insert(row, func(v *models.Animal, id int64) { v.ID = id }, sameTag(a.Tag))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *AnimalRepo) GetByID(ctx context.Context, id int64) (*models.Animal, error) {
	a, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AnimalRepo) List(ctx context.Context, f models.AnimalFilter) ([]models.Animal, error) {
	return r.t.filter(func(a models.Animal) bool {
		return (f.ProductiveStatus == "" || a.ProductiveStatus == f.ProductiveStatus) &&
			(f.ReproductiveStatus == "" || a.ReproductiveStatus == f.ReproductiveStatus) &&
			(f.Sex == "" || a.Sex == f.Sex) &&
			(f.Breed == "" || a.Breed == f.Breed)
	}), nil
}

func (r *AnimalRepo) Update(ctx context.Context, a *models.Animal) (*models.Animal, error) {
	updated, err := r.t.update(a.ID, func(old models.Animal) models.Animal {
		next := *a
		next.RegisteredAt = old.RegisteredAt
		next.PhotoURL = old.PhotoURL
		next.CreatedBy = old.CreatedBy
		return next
	}, sameTag(a.Tag))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *AnimalRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(id)
}

func (r *AnimalRepo) SetPhotoURL(ctx context.Context, id int64, url *string, modifiedBy int64) (*models.Animal, error) {
	updated, err := r.t.update(id, func(old models.Animal) models.Animal {
		old.PhotoURL = url
		old.ModifiedBy = &modifiedBy
		return old
	}, nil)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
