package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/db"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/shared"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("users: user %w", shared.ErrNotFound)
	// ErrHasDependents indicates the user still owns events or categories.
	ErrHasDependents = fmt.Errorf("users: %w: user still owns events or categories", httpx.ErrConflict)
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Get(ctx context.Context, id int64) (*User, error)
	GetForUpdate(ctx context.Context, id int64) (*User, error)
	Promote(ctx context.Context, id, by int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx, pool: r.pool})
	})
}

const userColumns = `u.id, u.email, u.name, u.role, u.is_active, u.promoted_at, u.promoted_by,
	u.last_login_at, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.IsActive, &u.PromotedAt, &u.PromotedBy,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = authz.Role(role)
	u.Permissions = []authz.Permission{}
	return &u, nil
}

// List returns a page of users with their permissions.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		conditions = append(conditions, "u.role = ANY("+next(roles)+")")
	}
	if filter.PromotedBy != nil {
		conditions = append(conditions, "u.promoted_by = "+next(*filter.PromotedBy))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := next("%" + search + "%")
		conditions = append(conditions, "(u.name ILIKE "+p+" OR u.email ILIKE "+p+")")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users u "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + userColumns + " FROM users u " + where + " ORDER BY u.name, u.id"
	if filter.Limit > 0 {
		query += " LIMIT " + next(filter.Limit) + " OFFSET " + next(shared.Offset(filter.Page, filter.Limit))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachPermissions(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get fetches a user with permissions.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

// GetForUpdate fetches and locks a user row.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, query string, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	list := []User{*u}
	if err := r.attachPermissions(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *Repository) attachPermissions(ctx context.Context, list []User) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, u := range list {
		ids[i] = u.ID
		index[u.ID] = i
	}
	rows, err := r.db.Query(ctx, `SELECT up.user_id, p.id, p.name, p.description, p.created_at
		FROM user_permissions up JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = ANY($1) ORDER BY p.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID int64
			p      authz.Permission
		)
		if err := rows.Scan(&userID, &p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return err
		}
		i := index[userID]
		list[i].Permissions = append(list[i].Permissions, p)
	}
	return rows.Err()
}

// Promote raises a user to ADMIN.
func (r *Repository) Promote(ctx context.Context, id, by int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2, promoted_at = $3, promoted_by = $4, updated_at = $3 WHERE id = $1`,
		id, string(authz.RoleAdmin), at, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user and its grants.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if shared.IsForeignKeyViolation(err) {
		return ErrHasDependents
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAudit appends to the audit trail.
func (r *Repository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}

var _ RepositoryPort = (*Repository)(nil)
