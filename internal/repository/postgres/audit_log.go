package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/herdstream/internal/models"
)

const auditLogColumns = `id, user_id, action, entity, entity_id, created_at, changes, note`

type AuditLogStore struct {
	pool *pgxpool.Pool
}

func NewAuditLogStore(pool *pgxpool.Pool) *AuditLogStore {
	return &AuditLogStore{pool: pool}
}

func scanAuditLog(r row) (*models.AuditLog, error) {
	var l models.AuditLog
	err := r.Scan(
		&l.ID,
		&l.UserID,
		&l.Action,
		&l.Entity,
		&l.EntityID,
		&l.CreatedAt,
		&l.Changes,
		&l.Note,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *AuditLogStore) Create(ctx context.Context, l *models.AuditLog) (*models.AuditLog, error) {
	query := `
		INSERT INTO audit_logs (user_id, action, entity, entity_id, created_at, changes, note)
		VALUES ($1, $2, $3, $4, now(), $5, $6)
		RETURNING ` + auditLogColumns

	var changes any
	if len(l.Changes) > 0 {
		changes = l.Changes
	}

	created, err := scanAuditLog(s.pool.QueryRow(ctx, query,
		l.UserID, l.Action, l.Entity, l.EntityID, changes, l.Note))
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return created, nil
}

func (s *AuditLogStore) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Action != "" {
		args = append(args, filter.Action)
		conds = append(conds, "action = $"+strconv.Itoa(len(args)))
	}
	if filter.Entity != "" {
		args = append(args, filter.Entity)
		conds = append(conds, "entity = $"+strconv.Itoa(len(args)))
	}
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.AuditLog, 0)
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return logs, nil
}
