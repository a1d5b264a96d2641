package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketdesk/backoffice/internal/platform/db"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Repository persists events, ticket types and status history.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context, filter ListFilter) ([]Event, int, error)
	Get(ctx context.Context, id int64) (*Event, error)
	GetForUpdate(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, ev Event) (int64, error)
	Update(ctx context.Context, ev Event) error
	UpdateStatus(ctx context.Context, ev Event, from Status) error
	SoftDelete(ctx context.Context, ids []int64, ownerID *int64, actorID int64) (int64, error)
	CategoryActive(ctx context.Context, categoryID int64) (bool, error)
	ListDueForCompletion(ctx context.Context, asOf time.Time, limit int) ([]int64, error)

	InsertHistory(ctx context.Context, change StatusChange) error
	ListHistory(ctx context.Context, eventID int64) ([]StatusChange, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error

	ListTicketTypes(ctx context.Context, eventID int64) ([]TicketType, error)
	GetTicketType(ctx context.Context, eventID, id int64) (*TicketType, error)
	CreateTicketType(ctx context.Context, t TicketType) (int64, error)
	UpdateTicketType(ctx context.Context, t TicketType) error
	DeleteTicketType(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const eventColumns = `e.id, e.title, e.description, e.location, e.cover_image, e.scheduled_date,
	e.scheduled_time, e.duration_minutes, e.category_id, e.owner_id, e.status, e.approved_at,
	e.approver_id, e.is_active, e.created_at, e.updated_at, e.updated_by,
	COALESCE(c.name, ''), COALESCE(u.name, '')`

const eventFrom = `FROM events e
	LEFT JOIN categories c ON c.id = e.category_id
	LEFT JOIN users u ON u.id = e.owner_id`

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	var status string
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.CoverImage, &ev.ScheduledDate,
		&ev.ScheduledTime, &ev.DurationMinutes, &ev.CategoryID, &ev.OwnerID, &status, &ev.ApprovedAt,
		&ev.ApproverID, &ev.IsActive, &ev.CreatedAt, &ev.UpdatedAt, &ev.UpdatedBy,
		&ev.CategoryName, &ev.OwnerName,
	)
	if err != nil {
		return nil, err
	}
	ev.Status = Status(status)
	return &ev, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Event, int, error) {
	conditions := []string{"e.is_active = TRUE"}
	var args []any
	argPos := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("e.owner_id = $%d", argPos))
		args = append(args, *filter.OwnerID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("e.category_id = $%d", argPos))
		args = append(args, *filter.CategoryID)
		argPos++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(e.title ILIKE $%d OR e.description ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+search+"%")
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM events e "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[filter.Sort]
	if !ok {
		sortCol = sortColumns["createdAt"]
	}
	order := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY %s %s, e.id DESC LIMIT $%d OFFSET $%d`,
		eventColumns, eventFrom, where, sortCol, order, argPos, argPos+1)
	args = append(args, filter.Limit, shared.Offset(filter.Page, filter.Limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ev)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Event, error) {
	ev, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` `+eventFrom+` WHERE e.id = $1 AND e.is_active = TRUE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Event, error) {
	ev, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` `+eventFrom+` WHERE e.id = $1 AND e.is_active = TRUE FOR UPDATE OF e`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (r *repository) Create(ctx context.Context, ev Event) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO events (title, description, location, cover_image, scheduled_date,
		scheduled_time, duration_minutes, category_id, owner_id, status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $11)
		RETURNING id`,
		ev.Title, ev.Description, ev.Location, ev.CoverImage, ev.ScheduledDate,
		ev.ScheduledTime, ev.DurationMinutes, ev.CategoryID, ev.OwnerID, string(ev.Status), ev.CreatedAt,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, ev Event) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET title = $2, description = $3, location = $4, cover_image = $5,
		scheduled_date = $6, scheduled_time = $7, duration_minutes = $8, category_id = $9,
		updated_at = $10, updated_by = $11
		WHERE id = $1 AND is_active = TRUE`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.CoverImage,
		ev.ScheduledDate, ev.ScheduledTime, ev.DurationMinutes, ev.CategoryID,
		ev.UpdatedAt, ev.UpdatedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, ev Event, from Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET status = $2, approved_at = $3, approver_id = $4,
		updated_at = $5, updated_by = $6
		WHERE id = $1 AND status = $7 AND is_active = TRUE`,
		ev.ID, string(ev.Status), ev.ApprovedAt, ev.ApproverID, ev.UpdatedAt, ev.UpdatedBy, string(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, ids []int64, ownerID *int64, actorID int64) (int64, error) {
	query := `UPDATE events SET is_active = FALSE, updated_at = NOW(), updated_by = $2
		WHERE id = ANY($1) AND is_active = TRUE`
	args := []any{ids, actorID}
	if ownerID != nil {
		query += ` AND owner_id = $3`
		args = append(args, *ownerID)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) CategoryActive(ctx context.Context, categoryID int64) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT is_active FROM categories WHERE id = $1`, categoryID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return active, err
}

func (r *repository) ListDueForCompletion(ctx context.Context, asOf time.Time, limit int) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM events
		WHERE status = $1 AND is_active = TRUE AND scheduled_date IS NOT NULL AND scheduled_date < $2
		ORDER BY scheduled_date, id LIMIT $3`, string(StatusApproved), asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) InsertHistory(ctx context.Context, change StatusChange) error {
	_, err := r.db.Exec(ctx, `INSERT INTO event_status_history (event_id, from_status, to_status, actor_id, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		change.EventID, string(change.From), string(change.To), change.ActorID, change.Reason, change.ChangedAt)
	return err
}

func (r *repository) ListHistory(ctx context.Context, eventID int64) ([]StatusChange, error) {
	rows, err := r.db.Query(ctx, `SELECT id, event_id, from_status, to_status, actor_id, reason, changed_at
		FROM event_status_history WHERE event_id = $1 ORDER BY changed_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		var from, to string
		if err := rows.Scan(&c.ID, &c.EventID, &from, &to, &c.ActorID, &c.Reason, &c.ChangedAt); err != nil {
			return nil, err
		}
		c.From, c.To = Status(from), Status(to)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}

const ticketColumns = `id, event_id, name, description, price, quantity, quantity_booked, created_at, updated_at`

func scanTicketType(row pgx.Row) (*TicketType, error) {
	var t TicketType
	if err := row.Scan(&t.ID, &t.EventID, &t.Name, &t.Description, &t.Price, &t.Quantity, &t.QuantityBooked, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListTicketTypes(ctx context.Context, eventID int64) ([]TicketType, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+` FROM ticket_types WHERE event_id = $1 ORDER BY price, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TicketType
	for rows.Next() {
		t, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *repository) GetTicketType(ctx context.Context, eventID, id int64) (*TicketType, error) {
	t, err := scanTicketType(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM ticket_types WHERE event_id = $1 AND id = $2 FOR UPDATE`, eventID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketTypeNotFound
	}
	return t, err
}

func (r *repository) CreateTicketType(ctx context.Context, t TicketType) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO ticket_types (event_id, name, description, price, quantity, quantity_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6) RETURNING id`,
		t.EventID, t.Name, t.Description, t.Price, t.Quantity, t.CreatedAt).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, ErrDuplicateTicketName
	}
	return id, err
}

func (r *repository) UpdateTicketType(ctx context.Context, t TicketType) error {
	tag, err := r.db.Exec(ctx, `UPDATE ticket_types SET name = $2, description = $3, price = $4, quantity = $5, updated_at = $6
		WHERE id = $1`, t.ID, t.Name, t.Description, t.Price, t.Quantity, t.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return ErrDuplicateTicketName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketTypeNotFound
	}
	return nil
}

func (r *repository) DeleteTicketType(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ticket_types WHERE id = $1 AND quantity_booked = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketsBooked
	}
	return nil
}
