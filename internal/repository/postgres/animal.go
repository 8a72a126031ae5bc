package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
)

const animalColumns = `id, tag, name, sex, birth_date, breed, reproductive_status, productive_status,
	health, production, current_weight, current_location, movement_history, offspring_ids,
	registered_at, removed_at, photo_url, notes, created_by, modified_by`

type AnimalStore struct {
	pool *pgxpool.Pool
}

func NewAnimalStore(pool *pgxpool.Pool) *AnimalStore {
	return &AnimalStore{pool: pool}
}

func scanAnimal(r row) (*models.Animal, error) {
	var a models.Animal
	err := r.Scan(
		&a.ID,
		&a.Tag,
		&a.Name,
		&a.Sex,
		&a.BirthDate,
		&a.Breed,
		&a.ReproductiveStatus,
		&a.ProductiveStatus,
		&a.Health,
		&a.Production,
		&a.CurrentWeight,
		&a.CurrentLocation,
		&a.MovementHistory,
		&a.OffspringIDs,
		&a.RegisteredAt,
		&a.RemovedAt,
		&a.PhotoURL,
		&a.Notes,
		&a.CreatedBy,
		&a.ModifiedBy,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// jsonArray defaults an unset JSON column to an empty array.
func jsonArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("[]")
	}
	return raw
}

func int64s(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func (s *AnimalStore) Create(ctx context.Context, a *models.Animal) (*models.Animal, error) {
	query := `
		INSERT INTO animals (tag, name, sex, birth_date, breed, reproductive_status, productive_status,
			health, production, current_weight, current_location, movement_history, offspring_ids,
			registered_at, removed_at, photo_url, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, COALESCE($14, now()), $15, $16, $17, $18)
		RETURNING ` + animalColumns

	var registeredAt any
	if !a.RegisteredAt.IsZero() {
		registeredAt = a.RegisteredAt
	}

	created, err := scanAnimal(s.pool.QueryRow(ctx, query,
		a.Tag, a.Name, a.Sex, a.BirthDate, a.Breed, a.ReproductiveStatus, a.ProductiveStatus,
		jsonArray(a.Health), jsonArray(a.Production), a.CurrentWeight, a.CurrentLocation,
		jsonArray(a.MovementHistory), int64s(a.OffspringIDs),
		registeredAt, a.RemovedAt, a.PhotoURL, a.Notes, a.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("insert animal: %w", mapWriteErr(err))
	}
	return created, nil
}

func (s *AnimalStore) GetByID(ctx context.Context, id int64) (*models.Animal, error) {
	a, err := scanAnimal(s.pool.QueryRow(ctx, `SELECT `+animalColumns+` FROM animals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get animal: %w", err)
	}
	return a, nil
}

// List builds the WHERE clause from the non-empty filter fields.
func (s *AnimalStore) List(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	add("productive_status", filter.ProductiveStatus)
	add("reproductive_status", filter.ReproductiveStatus)
	add("sex", filter.Sex)
	add("breed", filter.Breed)

	query := `SELECT ` + animalColumns + ` FROM animals`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list animals: %w", err)
	}
	defer rows.Close()

	animals := make([]models.Animal, 0)
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan animal: %w", err)
		}
		animals = append(animals, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate animals: %w", err)
	}
	return animals, nil
}

func (s *AnimalStore) Update(ctx context.Context, a *models.Animal) (*models.Animal, error) {
	query := `
		UPDATE animals
		SET tag = $2, name = $3, sex = $4, birth_date = $5, breed = $6, reproductive_status = $7,
			productive_status = $8, health = $9, production = $10, current_weight = $11,
			current_location = $12, movement_history = $13, offspring_ids = $14, removed_at = $15,
			notes = $16, modified_by = $17
		WHERE id = $1
		RETURNING ` + animalColumns

	updated, err := scanAnimal(s.pool.QueryRow(ctx, query,
		a.ID, a.Tag, a.Name, a.Sex, a.BirthDate, a.Breed, a.ReproductiveStatus, a.ProductiveStatus,
		jsonArray(a.Health), jsonArray(a.Production), a.CurrentWeight, a.CurrentLocation,
		jsonArray(a.MovementHistory), int64s(a.OffspringIDs), a.RemovedAt, a.Notes, a.ModifiedBy,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update animal: %w", mapWriteErr(err))
	}
	return updated, nil
}

func (s *AnimalStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM animals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete animal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *AnimalStore) SetPhotoURL(ctx context.Context, id int64, url *string, modifiedBy int64) (*models.Animal, error) {
	query := `
		UPDATE animals SET photo_url = $2, modified_by = $3
		WHERE id = $1
		RETURNING ` + animalColumns

	updated, err := scanAnimal(s.pool.QueryRow(ctx, query, id, url, modifiedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("set animal photo: %w", err)
	}
	return updated, nil
}
