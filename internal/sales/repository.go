package sales

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads booking aggregates.
type Repository interface {
	EventStats(ctx context.Context, filter Filter) ([]EventStat, error)
	CountEvents(ctx context.Context, scope Scope) (int, error)
	CountManagedUsers(ctx context.Context, scope Scope) (int, error)
	BookingTotals(ctx context.Context, scope Scope) (count int, revenue float64, err error)
	RecentEvents(ctx context.Context, scope Scope, limit int) ([]RecentEvent, error)
	RecentActivity(ctx context.Context, actorID *int64, limit int) ([]Activity, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const eventStatsQuery = `SELECT e.id, e.title, c.name, e.scheduled_date, e.status,
	COALESCE(b.total, 0), COALESCE(b.confirmed, 0), COALESCE(b.cancelled, 0), COALESCE(b.revenue, 0)::float8,
	COALESCE(t.sold, 0), COALESCE(t.available, 0)
FROM events e
JOIN categories c ON c.id = e.category_id
LEFT JOIN (
	SELECT event_id,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE booking_status = 'CONFIRMED') AS confirmed,
		COUNT(*) FILTER (WHERE booking_status = 'CANCELLED') AS cancelled,
		SUM(total_price) FILTER (WHERE booking_status = 'CONFIRMED') AS revenue
	FROM bookings GROUP BY event_id
) b ON b.event_id = e.id
LEFT JOIN (
	SELECT event_id, SUM(quantity_booked) AS sold, SUM(quantity - quantity_booked) AS available
	FROM ticket_types GROUP BY event_id
) t ON t.event_id = e.id`

func (r *repository) EventStats(ctx context.Context, f Filter) ([]EventStat, error) {
	conditions := []string{"e.is_active = TRUE"}
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if f.EventID != nil {
		add("e.id = $%d", *f.EventID)
	}
	if f.CategoryID != nil {
		add("e.category_id = $%d", *f.CategoryID)
	}
	if f.DateFrom != nil {
		add("e.scheduled_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("e.scheduled_date <= $%d", *f.DateTo)
	}
	if f.Status != "" {
		add("e.status = $%d", f.Status)
	}
	query := eventStatsQuery + " WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY e.scheduled_date DESC NULLS LAST, e.id DESC"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EventStat, error) {
		var s EventStat
		err := row.Scan(&s.EventID, &s.EventTitle, &s.Category, &s.EventDate, &s.Status,
			&s.TotalBookings, &s.ConfirmedBookings, &s.CancelledBookings, &s.Revenue,
			&s.TicketsSold, &s.TicketsAvailable)
		return s, err
	})
}

func ownerClause(scope Scope, args []any) (string, []any) {
	if scope.OwnerID == nil {
		return "", args
	}
	args = append(args, *scope.OwnerID)
	return fmt.Sprintf(" AND e.owner_id = $%d", len(args)), args
}

func (r *repository) CountEvents(ctx context.Context, scope Scope) (int, error) {
	clause, args := ownerClause(scope, nil)
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e WHERE e.is_active = TRUE`+clause, args...).Scan(&n)
	return n, err
}

func (r *repository) CountManagedUsers(ctx context.Context, scope Scope) (int, error) {
	var n int
	if scope.PromotedBy != nil {
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE promoted_by = $1`, *scope.PromotedBy).Scan(&n)
		return n, err
	}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role IN ('ADMIN', 'SUPER_ADMIN')`).Scan(&n)
	return n, err
}

func (r *repository) BookingTotals(ctx context.Context, scope Scope) (int, float64, error) {
	clause, args := ownerClause(scope, nil)
	var (
		count   int
		revenue float64
	)
	err := r.pool.QueryRow(ctx, `SELECT COUNT(b.id),
		COALESCE(SUM(b.total_price) FILTER (WHERE b.booking_status = 'CONFIRMED'), 0)::float8
		FROM bookings b JOIN events e ON e.id = b.event_id WHERE TRUE`+clause, args...).Scan(&count, &revenue)
	return count, revenue, err
}

func (r *repository) RecentEvents(ctx context.Context, scope Scope, limit int) ([]RecentEvent, error) {
	clause, args := ownerClause(scope, nil)
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT e.id, e.title, e.status, e.created_at FROM events e
		WHERE e.is_active = TRUE%s ORDER BY e.created_at DESC, e.id DESC LIMIT $%d`, clause, len(args)), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[RecentEvent])
}

func (r *repository) RecentActivity(ctx context.Context, actorID *int64, limit int) ([]Activity, error) {
	query := `SELECT actor_id, action, entity, entity_id, occurred_at FROM audit_logs`
	args := []any{limit}
	if actorID != nil {
		query += ` WHERE actor_id = $2`
		args = append(args, *actorID)
	}
	query += ` ORDER BY occurred_at DESC, id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Activity])
}
