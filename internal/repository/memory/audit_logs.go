package memory

import (
	"context"
	"slices"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
)

type AuditLogRepo struct {
	t *table[models.AuditLog]
}

func NewAuditLogRepo() *AuditLogRepo {
	return &AuditLogRepo{t: newTable[models.AuditLog]()}
}

func (r *AuditLogRepo) Create(ctx context.Context, l *models.AuditLog) (*models.AuditLog, error) {
	row := *l
	row.CreatedAt = time.Now().UTC()
	created, _ := r.t.insert(row, func(v *models.AuditLog, id int64) { v.ID = id }, nil)
	return &created, nil
}

func (r *AuditLogRepo) List(ctx context.Context, f models.AuditLogFilter) ([]models.AuditLog, error) {
	out := r.t.filter(func(l models.AuditLog) bool {
		return (f.Action == "" || l.Action == f.Action) &&
			(f.Entity == "" || l.Entity == f.Entity) &&
			(f.UserID == 0 || (l.UserID != nil && *l.UserID == f.UserID))
	})
	slices.Reverse(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
