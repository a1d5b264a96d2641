package categories

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

// Repository persists categories and subcategories.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context, filter ListFilter) ([]Category, int, error)
	Get(ctx context.Context, id int64) (*Category, error)
	Create(ctx context.Context, c Category) (int64, error)
	Update(ctx context.Context, c Category) error
	Deactivate(ctx context.Context, id, actorID int64, at time.Time) error

	ListSubCategories(ctx context.Context, categoryID int64, filter ListFilter) ([]SubCategory, int, error)
	GetSubCategory(ctx context.Context, categoryID, id int64) (*SubCategory, error)
	CreateSubCategory(ctx context.Context, s SubCategory) (int64, error)
	UpdateSubCategory(ctx context.Context, s SubCategory) error
	DeactivateSubCategory(ctx context.Context, categoryID, id int64, at time.Time) error

	RecordAudit(ctx context.Context, log shared.AuditLog) error
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

const categoryColumns = `c.id, c.name, c.description, c.image, c.is_active, c.created_by,
	COALESCE(u.name, ''), c.updated_by, c.created_at, c.updated_at`

const categoryFrom = `FROM categories c LEFT JOIN users u ON u.id = c.created_by`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.CreatedBy,
		&c.CreatedByName, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.SubCategories = []SubCategoryRef{}
	return &c, nil
}

func filterClause(filter ListFilter, alias string, args []any) (string, []any) {
	var conditions []string
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conditions = append(conditions, fmt.Sprintf("%s.is_active = $%d", alias, len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(%[1]s.name ILIKE $%[2]d OR %[1]s.description ILIKE $%[2]d)", alias, len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Category, int, error) {
	where, args := filterClause(filter, "c", nil)
	if where != "" {
		where = "WHERE " + where
	}
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM categories c "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, shared.Offset(filter.Page, filter.Limit))
	query := fmt.Sprintf("SELECT %s %s %s ORDER BY c.created_at DESC, c.id DESC LIMIT $%d OFFSET $%d",
		categoryColumns, categoryFrom, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachSubCategories(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) attachSubCategories(ctx context.Context, list []Category) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, c := range list {
		ids[i] = c.ID
		index[c.ID] = i
	}
	rows, err := r.db.Query(ctx, `SELECT category_id, id, name FROM subcategories
		WHERE category_id = ANY($1) AND is_active = TRUE ORDER BY name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			categoryID int64
			ref        SubCategoryRef
		)
		if err := rows.Scan(&categoryID, &ref.ID, &ref.Name); err != nil {
			return err
		}
		i := index[categoryID]
		list[i].SubCategories = append(list[i].SubCategories, ref)
	}
	return rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `SELECT `+categoryColumns+` `+categoryFrom+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	list := []Category{*c}
	if err := r.attachSubCategories(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *repository) Create(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO categories (name, description, image, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $5) RETURNING id`,
		c.Name, c.Description, c.Image, c.CreatedBy, c.CreatedAt).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, ErrDuplicateName
	}
	return id, err
}

func (r *repository) Update(ctx context.Context, c Category) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET name = $2, description = $3, image = $4, is_active = $5,
		updated_by = $6, updated_at = $7 WHERE id = $1`,
		c.ID, c.Name, c.Description, c.Image, c.IsActive, c.UpdatedBy, c.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id, actorID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET is_active = FALSE, updated_by = $2, updated_at = $3
		WHERE id = $1 AND is_active = TRUE`, id, actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const subCategoryColumns = `s.id, s.category_id, s.name, s.description, s.is_active, s.created_by, s.created_at, s.updated_at`

func scanSubCategory(row pgx.Row) (*SubCategory, error) {
	var s SubCategory
	if err := row.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Description, &s.IsActive, &s.CreatedBy,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) ListSubCategories(ctx context.Context, categoryID int64, filter ListFilter) ([]SubCategory, int, error) {
	where, args := filterClause(filter, "s", []any{categoryID})
	cond := "WHERE s.category_id = $1"
	if where != "" {
		cond += " AND " + where
	}
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM subcategories s "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, shared.Offset(filter.Page, filter.Limit))
	query := fmt.Sprintf("SELECT %s FROM subcategories s %s ORDER BY s.name, s.id LIMIT $%d OFFSET $%d",
		subCategoryColumns, cond, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []SubCategory
	for rows.Next() {
		s, err := scanSubCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (r *repository) GetSubCategory(ctx context.Context, categoryID, id int64) (*SubCategory, error) {
	s, err := scanSubCategory(r.db.QueryRow(ctx, `SELECT `+subCategoryColumns+` FROM subcategories s
		WHERE s.id = $1 AND s.category_id = $2`, id, categoryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubCategoryNotFound
	}
	return s, err
}

func (r *repository) CreateSubCategory(ctx context.Context, s SubCategory) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO subcategories (category_id, name, description, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $5) RETURNING id`,
		s.CategoryID, s.Name, s.Description, s.CreatedBy, s.CreatedAt).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, ErrDuplicateSubCategoryName
	}
	return id, err
}

func (r *repository) UpdateSubCategory(ctx context.Context, s SubCategory) error {
	tag, err := r.db.Exec(ctx, `UPDATE subcategories SET name = $3, description = $4, is_active = $5, updated_at = $6
		WHERE id = $1 AND category_id = $2`,
		s.ID, s.CategoryID, s.Name, s.Description, s.IsActive, s.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return ErrDuplicateSubCategoryName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubCategoryNotFound
	}
	return nil
}

func (r *repository) DeactivateSubCategory(ctx context.Context, categoryID, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE subcategories SET is_active = FALSE, updated_at = $3
		WHERE id = $1 AND category_id = $2 AND is_active = TRUE`, id, categoryID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubCategoryNotFound
	}
	return nil
}

func (r *repository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}
