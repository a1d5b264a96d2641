package events

import (
	"context"
	"errors"
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
	// ErrNotFound indicates the event does not exist or was deleted.
	ErrNotFound = fmt.Errorf("events: event %w", shared.ErrNotFound)
	// ErrTicketTypeNotFound indicates the ticket type does not belong to the event.
	ErrTicketTypeNotFound = fmt.Errorf("events: ticket type %w", shared.ErrNotFound)
	// ErrDuplicateTicketName indicates the event already has a ticket type with that name.
	ErrDuplicateTicketName = fmt.Errorf("events: %w: ticket type name already used for this event", httpx.ErrDuplicate)
	// ErrTicketsBooked indicates the ticket type has bookings and cannot be removed.
	ErrTicketsBooked = fmt.Errorf("events: %w: ticket type already has bookings", httpx.ErrConflict)
	// ErrStaleStatus indicates the status changed between read and write.
	ErrStaleStatus = fmt.Errorf("events: %w: status changed concurrently", httpx.ErrConflict)
)

const (
	idempotencyModuleEvent  = "events.create"
	idempotencyModuleTicket = "tickets.create"
	completionBatchSize     = 200
)

// Idempotency claims client supplied request keys.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string, actorID int64) error
	Release(ctx context.Context, key, module string) error
}

// CacheInvalidator drops derived caches after writes that affect sales figures.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// TransitionObserver is notified after each committed status change.
type TransitionObserver interface {
	ObserveTransition(from, to string)
}

// ServiceOptions carries optional collaborators.
type ServiceOptions struct {
	Logger      *slog.Logger
	Idempotency Idempotency
	Cache       CacheInvalidator
	Observer    TransitionObserver
	Clock       func() time.Time
}

// Service implements event and ticket type use cases.
type Service struct {
	repo      Repository
	lifecycle Lifecycle
	idem      Idempotency
	cache     CacheInvalidator
	observer  TransitionObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires a Service.
func NewService(repo Repository, opts ServiceOptions) *Service {
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		lifecycle: NewLifecycle(now),
		idem:      opts.Idempotency,
		cache:     opts.Cache,
		observer:  opts.Observer,
		logger:    logger.With(slog.String("component", "events")),
		now:       now,
	}
}

// List returns active events visible to actor. Admins only see their own.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter ListFilter) ([]Event, int, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, 0, err
	}
	if actor.Role != authz.RoleSuperAdmin {
		filter.OwnerID = &actor.ID
	}
	if filter.Limit <= 0 || filter.Limit > shared.MaxPageSize {
		filter.Limit = shared.DefaultPageSize
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.List(ctx, filter)
}

// Get returns an event with its ticket types.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Event, error) {
	ev, err := s.visibleEvent(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	tickets, err := s.repo.ListTicketTypes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("events: list ticket types: %w", err)
	}
	ev.TicketTypes = tickets
	return ev, nil
}

// Create registers a new event in DRAFT.
func (s *Service) Create(ctx context.Context, actor authz.Principal, req CreateEventRequest, idempotencyKey string) (*Event, error) {
	if err := authz.Require(actor, shared.PermCreateEvent); err != nil {
		return nil, err
	}
	now := s.now()
	if req.EventDate != nil && !req.EventDate.After(now) {
		return nil, httpx.Invalid("eventDate", "event date must be in the future")
	}
	if err := s.claim(ctx, idempotencyKey, idempotencyModuleEvent, actor.ID); err != nil {
		return nil, err
	}

	ev := Event{
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		Location:        strings.TrimSpace(req.Location),
		CoverImage:      req.CoverImage,
		ScheduledDate:   req.EventDate,
		ScheduledTime:   req.EventTime,
		DurationMinutes: req.Duration,
		CategoryID:      req.CategoryID,
		OwnerID:         actor.ID,
		Status:          StatusDraft,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ev.ScheduledTime == "" {
		ev.ScheduledTime = DefaultEventTime
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := s.requireCategory(ctx, repo, ev.CategoryID); err != nil {
			return err
		}
		id, err := repo.Create(ctx, ev)
		if err != nil {
			return fmt.Errorf("events: create: %w", err)
		}
		ev.ID = id
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "event.create",
			Entity:   "event",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"title": ev.Title, "category_id": ev.CategoryID},
			At:       now,
		})
	})
	if err != nil {
		s.release(ctx, idempotencyKey, idempotencyModuleEvent)
		return nil, err
	}
	return &ev, nil
}

// Update edits the descriptive fields of an event.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, req UpdateEventRequest) (*Event, error) {
	if err := authz.Require(actor, shared.PermEditEvent); err != nil {
		return nil, err
	}
	now := s.now()
	if req.EventDate != nil && !req.EventDate.After(now) {
		return nil, httpx.Invalid("eventDate", "event date must be in the future")
	}

	var updated *Event
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ev, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !authz.CanActOn(actor, ev.OwnerID) {
			return fmt.Errorf("%w: event belongs to another admin", authz.ErrForbidden)
		}
		if req.CategoryID != nil && *req.CategoryID != ev.CategoryID {
			if err := s.requireCategory(ctx, repo, *req.CategoryID); err != nil {
				return err
			}
			ev.CategoryID = *req.CategoryID
		}
		applyEventUpdate(ev, req)
		ev.UpdatedAt = now
		ev.UpdatedBy = &actor.ID
		if err := repo.Update(ctx, *ev); err != nil {
			return fmt.Errorf("events: update: %w", err)
		}
		updated = ev
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "event.update",
			Entity:   "event",
			EntityID: strconv.FormatInt(id, 10),
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyEventUpdate(ev *Event, req UpdateEventRequest) {
	if req.Title != nil {
		ev.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		ev.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		ev.Location = strings.TrimSpace(*req.Location)
	}
	if req.EventDate != nil {
		ev.ScheduledDate = req.EventDate
	}
	if req.EventTime != nil {
		ev.ScheduledTime = *req.EventTime
	}
	if req.Duration != nil {
		ev.DurationMinutes = req.Duration
	}
	if req.CoverImage != nil {
		ev.CoverImage = req.CoverImage
	}
}

// Delete soft deletes an event.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	if err := authz.Require(actor, shared.PermDeleteEvent); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ev, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !authz.CanActOn(actor, ev.OwnerID) {
			return fmt.Errorf("%w: event belongs to another admin", authz.ErrForbidden)
		}
		if _, err := repo.SoftDelete(ctx, []int64{id}, nil, actor.ID); err != nil {
			return fmt.Errorf("events: delete: %w", err)
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "event.delete",
			Entity:   "event",
			EntityID: strconv.FormatInt(id, 10),
			At:       s.now(),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// BulkDelete soft deletes several events and returns how many were removed.
// Admins only affect events they own.
func (s *Service) BulkDelete(ctx context.Context, actor authz.Principal, ids []int64) (int64, error) {
	if err := authz.Require(actor, shared.PermDeleteEvent); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, httpx.Invalid("eventIds", "at least one event id is required")
	}
	var owner *int64
	if actor.Role != authz.RoleSuperAdmin {
		owner = &actor.ID
	}
	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		n, err := repo.SoftDelete(ctx, ids, owner, actor.ID)
		if err != nil {
			return fmt.Errorf("events: bulk delete: %w", err)
		}
		deleted = n
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "event.bulk_delete",
			Entity:   "event",
			EntityID: joinIDs(ids),
			Meta:     map[string]any{"requested": len(ids), "deleted": n},
			At:       s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.invalidate(ctx)
	}
	return deleted, nil
}

// ChangeStatus moves an event along the lifecycle. The row is locked for the
// duration of the check and the write.
func (s *Service) ChangeStatus(ctx context.Context, actor authz.Principal, id int64, requested Status, reason string) (*Event, error) {
	if err := authz.Require(actor, shared.PermManageEventStatus); err != nil {
		return nil, err
	}
	var (
		updated Event
		from    Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ev, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !authz.CanActOn(actor, ev.OwnerID) {
			return fmt.Errorf("%w: event belongs to another admin", authz.ErrForbidden)
		}
		from = ev.Status
		updated, err = s.lifecycle.Transition(*ev, requested, actor)
		if err != nil {
			return err
		}
		return s.persistTransition(ctx, repo, updated, from, &actor.ID, reason)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, from, updated.Status)
	s.logger.Info("event status changed",
		slog.Int64("event_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(updated.Status)),
		slog.Int64("actor_id", actor.ID))
	return &updated, nil
}

// History returns the status changes recorded for an event.
func (s *Service) History(ctx context.Context, actor authz.Principal, id int64) ([]StatusChange, error) {
	if _, err := s.visibleEvent(ctx, s.repo, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// CompletePast moves approved events scheduled before asOf to COMPLETED and
// returns the number of events completed.
func (s *Service) CompletePast(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ListDueForCompletion(ctx, asOf, completionBatchSize)
	if err != nil {
		return 0, fmt.Errorf("events: list due: %w", err)
	}
	completed := 0
	for _, id := range ids {
		changed := false
		err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			ev, err := repo.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if ev.Status != StatusApproved || ev.ScheduledDate == nil || !ev.ScheduledDate.Before(asOf) {
				return nil
			}
			updated, err := s.lifecycle.Transition(*ev, StatusCompleted, authz.System)
			if err != nil {
				return err
			}
			if err := s.persistTransition(ctx, repo, updated, ev.Status, nil, "event date passed"); err != nil {
				return err
			}
			changed = true
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return completed, err
		}
		if changed {
			completed++
			s.afterTransition(ctx, StatusApproved, StatusCompleted)
		}
	}
	return completed, nil
}

func (s *Service) persistTransition(ctx context.Context, repo Repository, ev Event, from Status, actorID *int64, reason string) error {
	now := s.now()
	ev.UpdatedAt = now
	ev.UpdatedBy = actorID
	if err := repo.UpdateStatus(ctx, ev, from); err != nil {
		return err
	}
	if err := repo.InsertHistory(ctx, StatusChange{
		EventID:   ev.ID,
		From:      from,
		To:        ev.Status,
		ActorID:   actorID,
		Reason:    reason,
		ChangedAt: now,
	}); err != nil {
		return fmt.Errorf("events: record history: %w", err)
	}
	var auditActor int64
	if actorID != nil {
		auditActor = *actorID
	}
	return repo.RecordAudit(ctx, shared.AuditLog{
		ActorID:  auditActor,
		Action:   "event.status",
		Entity:   "event",
		EntityID: strconv.FormatInt(ev.ID, 10),
		Meta:     map[string]any{"from": string(from), "to": string(ev.Status), "reason": reason},
		At:       now,
	})
}

func (s *Service) afterTransition(ctx context.Context, from, to Status) {
	if s.observer != nil {
		s.observer.ObserveTransition(string(from), string(to))
	}
	s.invalidate(ctx)
}

// ListTicketTypes returns the ticket tiers of an event.
func (s *Service) ListTicketTypes(ctx context.Context, actor authz.Principal, eventID int64) ([]TicketType, error) {
	if _, err := s.visibleEvent(ctx, s.repo, actor, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListTicketTypes(ctx, eventID)
}

// CreateTicketType adds a ticket tier to an event.
func (s *Service) CreateTicketType(ctx context.Context, actor authz.Principal, eventID int64, req CreateTicketTypeRequest, idempotencyKey string) (*TicketType, error) {
	if err := authz.Require(actor, shared.PermEditEvent); err != nil {
		return nil, err
	}
	if err := s.claim(ctx, idempotencyKey, idempotencyModuleTicket, actor.ID); err != nil {
		return nil, err
	}
	now := s.now()
	ticket := TicketType{
		EventID:     eventID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ev, err := repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !authz.CanActOn(actor, ev.OwnerID) {
			return fmt.Errorf("%w: event belongs to another admin", authz.ErrForbidden)
		}
		id, err := repo.CreateTicketType(ctx, ticket)
		if err != nil {
			return err
		}
		ticket.ID = id
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "ticket_type.create",
			Entity:   "event",
			EntityID: strconv.FormatInt(eventID, 10),
			Meta:     map[string]any{"ticket_type_id": id, "name": ticket.Name, "price": ticket.Price, "quantity": ticket.Quantity},
			At:       now,
		})
	})
	if err != nil {
		s.release(ctx, idempotencyKey, idempotencyModuleTicket)
		return nil, err
	}
	s.invalidate(ctx)
	return &ticket, nil
}

// UpdateTicketType edits a ticket tier. Quantity never drops below what was sold.
func (s *Service) UpdateTicketType(ctx context.Context, actor authz.Principal, eventID, ticketID int64, req UpdateTicketTypeRequest) (*TicketType, error) {
	if err := authz.Require(actor, shared.PermEditEvent); err != nil {
		return nil, err
	}
	var updated *TicketType
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ev, err := repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !authz.CanActOn(actor, ev.OwnerID) {
			return fmt.Errorf("%w: event belongs to another admin", authz.ErrForbidden)
		}
		ticket, err := repo.GetTicketType(ctx, eventID, ticketID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			ticket.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			ticket.Description = req.Description
		}
		if req.Price != nil {
			ticket.Price = *req.Price
		}
		if req.Quantity != nil {
			if *req.Quantity < ticket.QuantityBooked {
				return httpx.Invalid("quantity", fmt.Sprintf("quantity cannot be lower than the %d tickets already booked", ticket.QuantityBooked))
			}
			ticket.Quantity = *req.Quantity
		}
		ticket.UpdatedAt = s.now()
		if err := repo.UpdateTicketType(ctx, *ticket); err != nil {
			return err
		}
		updated = ticket
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "ticket_type.update",
			Entity:   "event",
			EntityID: strconv.FormatInt(eventID, 10),
			Meta:     map[string]any{"ticket_type_id": ticketID},
			At:       ticket.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteTicketType removes a ticket tier that has no bookings.
func (s *Service) DeleteTicketType(ctx context.Context, actor authz.Principal, eventID, ticketID int64) error {
	if err := authz.Require(actor, shared.PermDeleteEvent); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ev, err := repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !authz.CanActOn(actor, ev.OwnerID) {
			return fmt.Errorf("%w: event belongs to another admin", authz.ErrForbidden)
		}
		ticket, err := repo.GetTicketType(ctx, eventID, ticketID)
		if err != nil {
			return err
		}
		if ticket.QuantityBooked > 0 {
			return ErrTicketsBooked
		}
		if err := repo.DeleteTicketType(ctx, ticketID); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "ticket_type.delete",
			Entity:   "event",
			EntityID: strconv.FormatInt(eventID, 10),
			Meta:     map[string]any{"ticket_type_id": ticketID, "name": ticket.Name},
			At:       s.now(),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) visibleEvent(ctx context.Context, repo Repository, actor authz.Principal, id int64) (*Event, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	ev, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanActOn(actor, ev.OwnerID) {
		return nil, ErrNotFound
	}
	return ev, nil
}

func (s *Service) requireCategory(ctx context.Context, repo Repository, categoryID int64) error {
	active, err := repo.CategoryActive(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("events: check category: %w", err)
	}
	if !active {
		return httpx.Invalid("categoryId", "category not found or inactive")
	}
	return nil
}

func (s *Service) claim(ctx context.Context, key, module string, actorID int64) error {
	if key == "" || s.idem == nil {
		return nil
	}
	return s.idem.CheckAndInsert(ctx, key, module, actorID)
}

func (s *Service) release(ctx context.Context, key, module string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Release(ctx, key, module); err != nil {
		s.logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("invalidate sales cache", slog.Any("error", err))
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
