package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit trail.
type Repository interface {
	Window(ctx context.Context, filter Filter, offset, limit int) ([]Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Window(ctx context.Context, f Filter, offset, limit int) ([]Entry, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("a.occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("a.occurred_at <= $%d", f.To)
	}
	if f.ActorID != nil {
		add("a.actor_id = $%d", *f.ActorID)
	}
	if entity := strings.TrimSpace(f.Entity); entity != "" {
		add("a.entity = $%d", entity)
	}
	if action := strings.TrimSpace(f.Action); action != "" {
		add("a.action = $%d", action)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT a.id, a.actor_id, COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta, a.occurred_at
		FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id%s
		ORDER BY a.occurred_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e    Entry
			meta []byte
		)
		if err := row.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID, &meta, &e.At); err != nil {
			return e, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return e, fmt.Errorf("audit: decode meta of %d: %w", e.ID, err)
			}
		}
		return e, nil
	})
}
