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

const treatmentColumns = `id, animal_id, date, medication, dose, duration, administered_by, notes`

type TreatmentStore struct {
	pool *pgxpool.Pool
}

func NewTreatmentStore(pool *pgxpool.Pool) *TreatmentStore {
	return &TreatmentStore{pool: pool}
}

func scanTreatment(r row) (*models.Treatment, error) {
	var t models.Treatment
	err := r.Scan(
		&t.ID,
		&t.AnimalID,
		&t.Date,
		&t.Medication,
		&t.Dose,
		&t.Duration,
		&t.AdministeredBy,
		&t.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TreatmentStore) Create(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	query := `
		INSERT INTO treatments (animal_id, date, medication, dose, duration, administered_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + treatmentColumns

	created, err := scanTreatment(s.pool.QueryRow(ctx, query,
		t.AnimalID, t.Date, t.Medication, t.Dose, t.Duration, t.AdministeredBy, t.Notes))
	if err != nil {
		return nil, fmt.Errorf("insert treatment: %w", err)
	}
	return created, nil
}

func (s *TreatmentStore) GetByID(ctx context.Context, id int64) (*models.Treatment, error) {
	t, err := scanTreatment(s.pool.QueryRow(ctx, `SELECT `+treatmentColumns+` FROM treatments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get treatment: %w", err)
	}
	return t, nil
}

func (s *TreatmentStore) List(ctx context.Context, administeredBy *int64) ([]models.Treatment, error) {
	query := `SELECT ` + treatmentColumns + ` FROM treatments`
	var args []any
	if administeredBy != nil {
		query += ` WHERE administered_by = $1`
		args = append(args, *administeredBy)
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	defer rows.Close()

	treatments := make([]models.Treatment, 0)
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan treatment: %w", err)
		}
		treatments = append(treatments, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate treatments: %w", err)
	}
	return treatments, nil
}

func (s *TreatmentStore) Update(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	query := `
		UPDATE treatments
		SET animal_id = $2, date = $3, medication = $4, dose = $5, duration = $6,
			administered_by = $7, notes = $8
		WHERE id = $1
		RETURNING ` + treatmentColumns

	updated, err := scanTreatment(s.pool.QueryRow(ctx, query,
		t.ID, t.AnimalID, t.Date, t.Medication, t.Dose, t.Duration, t.AdministeredBy, t.Notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update treatment: %w", err)
	}
	return updated, nil
}

func (s *TreatmentStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM treatments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete treatment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
