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

const eventColumns = `id, recurring, title, description, starts_at, ends_at, animal_id, kind, created_by`

type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func scanEvent(r row) (*models.Event, error) {
	var e models.Event
	err := r.Scan(
		&e.ID,
		&e.Recurring,
		&e.Title,
		&e.Description,
		&e.StartsAt,
		&e.EndsAt,
		&e.AnimalID,
		&e.Kind,
		&e.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EventStore) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	query := `
		INSERT INTO events (recurring, title, description, starts_at, ends_at, animal_id, kind, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + eventColumns

	created, err := scanEvent(s.pool.QueryRow(ctx, query,
		e.Recurring, e.Title, e.Description, e.StartsAt, e.EndsAt, e.AnimalID, e.Kind, e.CreatedBy))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return created, nil
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventStore) List(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *EventStore) Update(ctx context.Context, e *models.Event) (*models.Event, error) {
	query := `
		UPDATE events
		SET recurring = $2, title = $3, description = $4, starts_at = $5, ends_at = $6,
			animal_id = $7, kind = $8
		WHERE id = $1
		RETURNING ` + eventColumns

	updated, err := scanEvent(s.pool.QueryRow(ctx, query,
		e.ID, e.Recurring, e.Title, e.Description, e.StartsAt, e.EndsAt, e.AnimalID, e.Kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
