package audit

import (
	"context"
	"errors"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

const exportLimit = 10000

// Service reads the audit timeline.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one window of the timeline, newest first.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter Filter) (Result, error) {
	if err := authz.RequireRole(actor, authz.RoleSuperAdmin); err != nil {
		return Result{}, err
	}
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultPageSize
	}
	if limit > shared.MaxPageSize {
		limit = shared.MaxPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	entries, err := s.repo.Window(ctx, filter, shared.Offset(page, limit), limit+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > limit
	if hasNext {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []Entry{}
	}
	paging := PagingInfo{Page: page, Limit: limit, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Export returns up to exportLimit entries matching filter.
func (s *Service) Export(ctx context.Context, actor authz.Principal, filter Filter) ([]Entry, error) {
	if err := authz.RequireRole(actor, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.Window(ctx, filter, 0, exportLimit)
}
