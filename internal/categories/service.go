package categories

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/shared"
)

var (
	// ErrNotFound indicates the category does not exist.
	ErrNotFound = fmt.Errorf("categories: category %w", shared.ErrNotFound)
	// ErrSubCategoryNotFound indicates the subcategory does not belong to the category.
	ErrSubCategoryNotFound = fmt.Errorf("categories: subcategory %w", shared.ErrNotFound)
	// ErrDuplicateName indicates another category already uses the name.
	ErrDuplicateName = fmt.Errorf("categories: %w: category name already exists", httpx.ErrDuplicate)
	// ErrDuplicateSubCategoryName indicates the category already has a subcategory with the name.
	ErrDuplicateSubCategoryName = fmt.Errorf("categories: %w: subcategory name already exists in this category", httpx.ErrDuplicate)
)

// Service implements the taxonomy use cases.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Service. A nil clock defaults to UTC wall time.
func NewService(repo Repository, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With(slog.String("component", "categories")), now: now}
}

func normalizePage(filter ListFilter) ListFilter {
	if filter.Limit <= 0 || filter.Limit > shared.MaxPageSize {
		filter.Limit = shared.DefaultPageSize
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return filter
}

// List returns a page of categories with their active subcategories.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter ListFilter) ([]Category, int, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, normalizePage(filter))
}

// Get returns one category.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Category, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Create adds a category.
func (s *Service) Create(ctx context.Context, actor authz.Principal, req CreateCategoryRequest) (*Category, error) {
	if err := authz.Require(actor, shared.PermManageCategories); err != nil {
		return nil, err
	}
	now := s.now()
	c := Category{
		Name:          strings.TrimSpace(req.Name),
		Description:   trimmed(req.Description),
		Image:         req.Image,
		IsActive:      true,
		CreatedBy:     actor.ID,
		CreatedByName: actor.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
		SubCategories: []SubCategoryRef{},
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "category.create",
			Entity:   "category",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": c.Name},
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update edits a category. Setting isActive restores a deleted category.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, req UpdateCategoryRequest) (*Category, error) {
	if err := authz.Require(actor, shared.PermManageCategories); err != nil {
		return nil, err
	}
	var updated *Category
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			c.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			c.Description = trimmed(req.Description)
		}
		if req.Image != nil {
			c.Image = req.Image
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		now := s.now()
		c.UpdatedBy = &actor.ID
		c.UpdatedAt = now
		if err := repo.Update(ctx, *c); err != nil {
			return err
		}
		updated = c
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "category.update",
			Entity:   "category",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": c.Name, "is_active": c.IsActive},
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete deactivates a category. Events keep their reference.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	if err := authz.Require(actor, shared.PermManageCategories); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		now := s.now()
		if err := repo.Deactivate(ctx, id, actor.ID, now); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "category.delete",
			Entity:   "category",
			EntityID: strconv.FormatInt(id, 10),
			At:       now,
		})
	})
}

// ListSubCategories returns a page of subcategories of categoryID.
func (s *Service) ListSubCategories(ctx context.Context, actor authz.Principal, categoryID int64, filter ListFilter) ([]SubCategory, int, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, 0, err
	}
	if _, err := s.repo.Get(ctx, categoryID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListSubCategories(ctx, categoryID, normalizePage(filter))
}

// GetSubCategory returns a subcategory only when it belongs to categoryID.
func (s *Service) GetSubCategory(ctx context.Context, actor authz.Principal, categoryID, id int64) (*SubCategory, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.repo.GetSubCategory(ctx, categoryID, id)
}

// CreateSubCategory adds a subcategory under an active category.
func (s *Service) CreateSubCategory(ctx context.Context, actor authz.Principal, categoryID int64, req CreateSubCategoryRequest) (*SubCategory, error) {
	if err := authz.Require(actor, shared.PermManageCategories); err != nil {
		return nil, err
	}
	now := s.now()
	sub := SubCategory{
		CategoryID:  categoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: trimmed(req.Description),
		IsActive:    true,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		parent, err := repo.Get(ctx, categoryID)
		if err != nil {
			return err
		}
		if !parent.IsActive {
			return httpx.Invalid("categoryId", "category is inactive")
		}
		id, err := repo.CreateSubCategory(ctx, sub)
		if err != nil {
			return err
		}
		sub.ID = id
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "subcategory.create",
			Entity:   "subcategory",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": sub.Name, "category_id": categoryID},
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubCategory edits a subcategory of categoryID.
func (s *Service) UpdateSubCategory(ctx context.Context, actor authz.Principal, categoryID, id int64, req UpdateSubCategoryRequest) (*SubCategory, error) {
	if err := authz.Require(actor, shared.PermManageCategories); err != nil {
		return nil, err
	}
	var updated *SubCategory
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		sub, err := repo.GetSubCategory(ctx, categoryID, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			sub.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			sub.Description = trimmed(req.Description)
		}
		if req.IsActive != nil {
			sub.IsActive = *req.IsActive
		}
		now := s.now()
		sub.UpdatedAt = now
		if err := repo.UpdateSubCategory(ctx, *sub); err != nil {
			return err
		}
		updated = sub
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "subcategory.update",
			Entity:   "subcategory",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": sub.Name, "category_id": categoryID},
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSubCategory deactivates a subcategory of categoryID.
func (s *Service) DeleteSubCategory(ctx context.Context, actor authz.Principal, categoryID, id int64) error {
	if err := authz.Require(actor, shared.PermManageCategories); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		now := s.now()
		if err := repo.DeactivateSubCategory(ctx, categoryID, id, now); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "subcategory.delete",
			Entity:   "subcategory",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"category_id": categoryID},
			At:       now,
		})
	})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
