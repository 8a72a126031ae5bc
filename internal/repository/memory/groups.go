package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
)

type GroupRepo struct {
	t *table[models.Group]
}

func NewGroupRepo() *GroupRepo {
	return &GroupRepo{t: newTable[models.Group]()}
}

func sameName(name string) func(models.Group) bool {
	return func(g models.Group) bool { return g.Name == name }
}

func (r *GroupRepo) Create(ctx context.Context, g *models.Group) (*models.Group, error) {
	row := *g
	row.CreatedOn = time.Now().UTC().Truncate(24 * time.Hour)
	if row.AnimalIDs == nil {
		row.AnimalIDs = []int64{}
	}
	created, err := r.t.insert(row, func(v *models.Group, id int64) { v.ID = id }, sameName(g.Name))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	g, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *GroupRepo) List(ctx context.Context) ([]models.Group, error) {
	out := r.t.filter(nil)
	slices.SortFunc(out, func(a, b models.Group) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *GroupRepo) Update(ctx context.Context, g *models.Group) (*models.Group, error) {
	updated, err := r.t.update(g.ID, func(old models.Group) models.Group {
		next := *g
		next.CreatedOn = old.CreatedOn
		if next.AnimalIDs == nil {
			next.AnimalIDs = []int64{}
		}
		return next
	}, sameName(g.Name))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *GroupRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(id)
}
