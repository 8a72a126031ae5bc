package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
)

const groupColumns = `id, name, description, kind, animal_ids, created_on, current_state`

type GroupStore struct {
	pool *pgxpool.Pool
}

func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

func scanGroup(r row) (*models.Group, error) {
	var g models.Group
	err := r.Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.Kind,
		&g.AnimalIDs,
		&g.CreatedOn,
		&g.CurrentState,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) Create(ctx context.Context, g *models.Group) (*models.Group, error) {
	query := `
		INSERT INTO groups (name, description, kind, animal_ids, current_state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + groupColumns

	created, err := scanGroup(s.pool.QueryRow(ctx, query,
		g.Name, g.Description, g.Kind, int64s(g.AnimalIDs), g.CurrentState))
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", mapWriteErr(err))
	}
	return created, nil
}

func (s *GroupStore) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) List(ctx context.Context) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) Update(ctx context.Context, g *models.Group) (*models.Group, error) {
	query := `
		UPDATE groups
		SET name = $2, description = $3, kind = $4, animal_ids = $5, current_state = $6
		WHERE id = $1
		RETURNING ` + groupColumns

	updated, err := scanGroup(s.pool.QueryRow(ctx, query,
		g.ID, g.Name, g.Description, g.Kind, int64s(g.AnimalIDs), g.CurrentState))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update group: %w", mapWriteErr(err))
	}
	return updated, nil
}

func (s *GroupStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
