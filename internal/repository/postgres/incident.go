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

const incidentColumns = `id, animal_id, created_by, kind, description, detected_on, reported_by, status, resolved_on`

type IncidentStore struct {
	pool *pgxpool.Pool
}

func NewIncidentStore(pool *pgxpool.Pool) *IncidentStore {
	return &IncidentStore{pool: pool}
}

func scanIncident(r row) (*models.Incident, error) {
	var i models.Incident
	err := r.Scan(
		&i.ID,
		&i.AnimalID,
		&i.CreatedBy,
		&i.Kind,
		&i.Description,
		&i.DetectedOn,
		&i.ReportedBy,
		&i.Status,
		&i.ResolvedOn,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *IncidentStore) Create(ctx context.Context, i *models.Incident) (*models.Incident, error) {
	query := `
		INSERT INTO incidents (animal_id, created_by, kind, description, detected_on, reported_by, status, resolved_on)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, ''), 'pendiente'), $8)
		RETURNING ` + incidentColumns

	created, err := scanIncident(s.pool.QueryRow(ctx, query,
		i.AnimalID, i.CreatedBy, i.Kind, i.Description, i.DetectedOn, i.ReportedBy, i.Status, i.ResolvedOn))
	if err != nil {
		return nil, fmt.Errorf("insert incident: %w", err)
	}
	return created, nil
}

func (s *IncidentStore) GetByID(ctx context.Context, id int64) (*models.Incident, error) {
	i, err := scanIncident(s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return i, nil
}

func (s *IncidentStore) List(ctx context.Context) ([]models.Incident, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+incidentColumns+` FROM incidents ORDER BY detected_on DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return incidents, nil
}

func (s *IncidentStore) Update(ctx context.Context, i *models.Incident) (*models.Incident, error) {
	query := `
		UPDATE incidents
		SET animal_id = $2, kind = $3, description = $4, detected_on = $5, reported_by = $6,
			status = $7, resolved_on = $8
		WHERE id = $1
		RETURNING ` + incidentColumns

	updated, err := scanIncident(s.pool.QueryRow(ctx, query,
		i.ID, i.AnimalID, i.Kind, i.Description, i.DetectedOn, i.ReportedBy, i.Status, i.ResolvedOn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update incident: %w", err)
	}
	return updated, nil
}

func (s *IncidentStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
