package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdesk/backoffice/internal/authz"
)

var clockAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return clockAt }

func TestTransitionTableExhaustive(t *testing.T) {
	allowed := map[string]bool{
		"DRAFT->PENDING":      true,
		"DRAFT->CANCELLED":    true,
		"PENDING->APPROVED":   true,
		"PENDING->HOLD":       true,
		"PENDING->CANCELLED":  true,
		"APPROVED->HOLD":      true,
		"APPROVED->CANCELLED": true,
		"APPROVED->COMPLETED": true,
		"HOLD->APPROVED":      true,
		"HOLD->CANCELLED":     true,
		"COMPLETED->ARCHIVED": true,
	}
	lc := NewLifecycle(fixedClock)
	actor := authz.Principal{ID: 1, Role: authz.RoleSuperAdmin}

	for _, from := range Statuses {
		for _, to := range Statuses {
			key := fmt.Sprintf("%s->%s", from, to)
			t.Run(key, func(t *testing.T) {
				assert.Equal(t, allowed[key], CanTransition(from, to))
				ev := Event{ID: 10, Status: from}
				got, err := lc.Transition(ev, to, actor)
				if allowed[key] {
					require.NoError(t, err)
					assert.Equal(t, to, got.Status)
					return
				}
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, ev, got)
			})
		}
	}
}

func TestSelfTransitionsRejected(t *testing.T) {
	for _, s := range Statuses {
		assert.False(t, CanTransition(s, s), s)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusArchived.Terminal())
	assert.False(t, StatusCompleted.Terminal())
	assert.False(t, StatusDraft.Terminal())
}

func TestApprovalStampedOnEnteringApproved(t *testing.T) {
	lc := NewLifecycle(fixedClock)
	approver := authz.Principal{ID: 42, Role: authz.RoleAdmin}

	got, err := lc.Transition(Event{ID: 1, Status: StatusPending}, StatusApproved, approver)
	require.NoError(t, err)
	require.NotNil(t, got.ApprovedAt)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, clockAt, *got.ApprovedAt)
	assert.Equal(t, int64(42), *got.ApproverID)
}

func TestApprovalRestampedFromHold(t *testing.T) {
	earlier := clockAt.Add(-48 * time.Hour)
	firstApprover := int64(7)
	ev := Event{ID: 1, Status: StatusHold, ApprovedAt: &earlier, ApproverID: &firstApprover}

	got, err := NewLifecycle(fixedClock).Transition(ev, StatusApproved, authz.Principal{ID: 9, Role: authz.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, clockAt, *got.ApprovedAt)
	assert.Equal(t, int64(9), *got.ApproverID)
	assert.Equal(t, earlier, *ev.ApprovedAt, "input event must not be mutated")
}

func TestApprovalPreservedOnOtherTransitions(t *testing.T) {
	earlier := clockAt.Add(-time.Hour)
	approver := int64(3)
	lc := NewLifecycle(fixedClock)
	actor := authz.Principal{ID: 9, Role: authz.RoleSuperAdmin}

	ev := Event{ID: 1, Status: StatusApproved, ApprovedAt: &earlier, ApproverID: &approver}
	for _, to := range []Status{StatusHold, StatusCancelled, StatusCompleted} {
		got, err := lc.Transition(ev, to, actor)
		require.NoError(t, err)
		assert.Equal(t, earlier, *got.ApprovedAt, to)
		assert.Equal(t, approver, *got.ApproverID, to)
	}

	got, err := lc.Transition(Event{ID: 2, Status: StatusDraft}, StatusPending, actor)
	require.NoError(t, err)
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.ApproverID)
}

func TestZeroLifecycleUsesWallClock(t *testing.T) {
	var lc Lifecycle
	got, err := lc.Transition(Event{Status: StatusPending}, StatusApproved, authz.Principal{ID: 1, Role: authz.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), *got.ApprovedAt, time.Minute)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)

	_, err = ParseStatus("PUBLISHED")
	require.Error(t, err)
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	next := AllowedTransitions(StatusPending)
	require.Len(t, next, 3)
	next[0] = StatusArchived
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.Empty(t, AllowedTransitions(StatusArchived))
}
