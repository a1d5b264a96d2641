package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/db"
	"github.com/ticketdesk/backoffice/internal/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type pgStore struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewStore returns a PostgreSQL backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool, pool: pool}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgStore{db: tx, pool: s.pool})
	})
}

func (s *pgStore) LoadPrincipal(ctx context.Context, userID int64, forUpdate bool) (authz.Principal, error) {
	query := `SELECT id, email, name, role FROM users WHERE id = $1 AND is_active = TRUE`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		p    authz.Principal
		role string
	)
	if err := s.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.Email, &p.Name, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Principal{}, ErrNotFound
		}
		return authz.Principal{}, err
	}
	parsed, err := authz.ParseRole(role)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("rbac: user %d: %w", userID, err)
	}
	p.Role = parsed

	rows, err := s.db.Query(ctx, `SELECT p.name FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1`, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return authz.Principal{}, err
	}
	p.Permissions = authz.NewPermissionSet(names...)
	return p, nil
}

func (s *pgStore) ListPermissions(ctx context.Context) ([]authz.Permission, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, description, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []authz.Permission
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *pgStore) GetPermission(ctx context.Context, id int64) (authz.Permission, error) {
	var p authz.Permission
	err := s.db.QueryRow(ctx, `SELECT id, name, description, created_at FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return authz.Permission{}, ErrPermissionNotFound
	}
	return p, err
}

func (s *pgStore) InsertPermission(ctx context.Context, name, description string, at time.Time) (authz.Permission, error) {
	p := authz.Permission{Name: name, Description: description, CreatedAt: at}
	err := s.db.QueryRow(ctx, `INSERT INTO permissions (name, description, created_at) VALUES ($1, $2, $3) RETURNING id`,
		name, description, at).Scan(&p.ID)
	if shared.IsUniqueViolation(err) {
		return authz.Permission{}, authz.ErrDuplicatePermission
	}
	return p, err
}

func (s *pgStore) InsertGrant(ctx context.Context, grant authz.Grant) error {
	_, err := s.db.Exec(ctx, `INSERT INTO user_permissions (user_id, permission_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)`, grant.PrincipalID, grant.PermissionID, grant.GrantedBy, grant.GrantedAt)
	if shared.IsUniqueViolation(err) {
		return authz.ErrDuplicateGrant
	}
	return err
}

func (s *pgStore) DeleteGrant(ctx context.Context, userID, permissionID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgStore) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(s.db).Record(ctx, log)
}
