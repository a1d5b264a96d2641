package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ticketdesk/backoffice/internal/authz"
)

// Status is the lifecycle state of an event.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusHold      Status = "HOLD"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusHold, StatusCancelled, StatusCompleted, StatusArchived}

// ErrInvalidTransition indicates the requested status is not reachable.
var ErrInvalidTransition = errors.New("events: invalid status transition")

// transitions maps each state to the states it may move to.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusApproved, StatusHold, StatusCancelled},
	StatusApproved:  {StatusHold, StatusCancelled, StatusCompleted},
	StatusHold:      {StatusApproved, StatusCancelled},
	StatusCancelled: {},
	StatusCompleted: {StatusArchived},
	StatusArchived:  {},
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("events: unknown status %q", raw)
	}
	return status, nil
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the destinations reachable from from.
func AllowedTransitions(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// Lifecycle applies validated status changes to events.
type Lifecycle struct {
	now func() time.Time
}

// NewLifecycle constructs a Lifecycle. A nil clock defaults to UTC wall time.
func NewLifecycle(now func() time.Time) Lifecycle {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return Lifecycle{now: now}
}

// Transition moves ev to requested on behalf of actor and returns the updated
// copy. Entering APPROVED always restamps the approval fields; no other
// transition touches them. The caller checks that actor may change statuses.
func (l Lifecycle) Transition(ev Event, requested Status, actor authz.Principal) (Event, error) {
	if !CanTransition(ev.Status, requested) {
		return ev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ev.Status, requested)
	}
	updated := ev
	updated.Status = requested
	if requested == StatusApproved {
		now := l.clock()
		approver := actor.ID
		updated.ApprovedAt = &now
		updated.ApproverID = &approver
	}
	return updated, nil
}

func (l Lifecycle) clock() time.Time {
	if l.now == nil {
		return time.Now().UTC()
	}
	return l.now()
}
