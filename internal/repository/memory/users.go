package memory

import (
	"context"
	"strings"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
)

type UserRepo struct {
	t *table[models.User]
}

func NewUserRepo() *UserRepo {
	return &UserRepo{t: newTable[models.User]()}
}

func sameEmail(email string) func(models.User) bool {
	return func(u models.User) bool { return strings.EqualFold(u.Email, email) }
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	row := *u
	row.CreatedAt = time.Now().UTC()
	created, err := r.t.insert(row, func(v *models.User, id int64) { v.ID = id }, sameEmail(u.Email))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := r.t.get(id)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	found := r.t.filter(sameEmail(email))
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	return r.t.filter(nil), nil
}

func (r *UserRepo) ListActive(ctx context.Context, role string) ([]models.User, error) {
	return r.t.filter(func(u models.User) bool {
		return u.Active && (role == "" || u.Role == role)
	}), nil
}

func (r *UserRepo) Update(ctx context.Context, u *models.User) (*models.User, error) {
	updated, err := r.t.update(u.ID, func(old models.User) models.User {
		next := *u
		next.CreatedAt = old.CreatedAt
		next.LastAccessAt = old.LastAccessAt
		if next.PasswordHash == "" {
			next.PasswordHash = old.PasswordHash
		}
		return next
	}, sameEmail(u.Email))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(id)
}

func (r *UserRepo) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.t.update(id, func(old models.User) models.User {
		old.LastAccessAt = &at
		return old
	}, nil)
	return err
}
