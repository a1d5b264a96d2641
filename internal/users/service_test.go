package users

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

type mockRepo struct {
	users  map[int64]User
	audits []shared.AuditLog
	owners map[int64]bool
}

func newMockRepo(users ...User) *mockRepo {
	m := &mockRepo{users: map[int64]User{}, owners: map[int64]bool{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	snapshot := make(map[int64]User, len(m.users))
	for k, v := range m.users {
		snapshot[k] = v
	}
	audits := len(m.audits)
	if err := fn(ctx, m); err != nil {
		m.users = snapshot
		m.audits = m.audits[:audits]
		return err
	}
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if len(filter.Roles) > 0 && !authz.HasRole(u.Principal(), filter.Roles...) {
			continue
		}
		if filter.PromotedBy != nil && (u.PromotedBy == nil || *u.PromotedBy != *filter.PromotedBy) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id int64) (*User, error) {
	return m.Get(ctx, id)
}

func (m *mockRepo) Promote(_ context.Context, id, by int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = authz.RoleAdmin
	u.PromotedAt = &at
	u.PromotedBy = &by
	m.users[id] = u
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	if m.owners[id] {
		return ErrHasDependents
	}
	delete(m.users, id)
	return nil
}

func (m *mockRepo) RecordAudit(_ context.Context, log shared.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

type outbox struct {
	sent []string
	err  error
}

func (o *outbox) Notify(_ context.Context, to, _, _ string) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, to)
	return nil
}

var now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func fixture() (*Service, *mockRepo, *outbox) {
	repo := newMockRepo(
		User{ID: 1, Email: "root@example.com", Name: "Root", Role: authz.RoleSuperAdmin, IsActive: true},
		User{ID: 2, Email: "ada@example.com", Name: "Ada", Role: authz.RoleAdmin, IsActive: true,
			PromotedBy: ptr(int64(1)), Permissions: []authz.Permission{{ID: 5, Name: shared.PermViewUsers}}},
		User{ID: 3, Email: "bo@example.com", Name: "Bo", Role: authz.RoleCustomer, IsActive: true},
		User{ID: 4, Email: "cy@example.com", Name: "Cy", Role: authz.RoleAdmin, IsActive: true, PromotedBy: ptr(int64(2))},
		User{ID: 5, Email: "di@example.com", Name: "Di", Role: authz.RoleEventCreator, IsActive: true},
	)
	notifier := &outbox{}
	svc := NewService(repo, authz.NewEngine(func() time.Time { return now }), notifier, nil)
	return svc, repo, notifier
}

func principal(repo *mockRepo, id int64) authz.Principal {
	return repo.users[id].Principal()
}

func TestPromoteCustomer(t *testing.T) {
	svc, repo, notifier := fixture()

	user, err := svc.Promote(context.Background(), principal(repo, 1), 3)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, user.Role)
	require.NotNil(t, user.PromotedAt)
	assert.Equal(t, now, *user.PromotedAt)
	assert.Equal(t, int64(1), *user.PromotedBy)
	assert.Equal(t, authz.RoleAdmin, repo.users[3].Role)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, "user.promote", repo.audits[0].Action)
	assert.Equal(t, "CUSTOMER", repo.audits[0].Meta["from"])
	assert.Equal(t, []string{"bo@example.com"}, notifier.sent)
}

func TestPromoteEventCreator(t *testing.T) {
	svc, repo, _ := fixture()

	user, err := svc.Promote(context.Background(), principal(repo, 1), 5)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, user.Role)
}

func TestPromoteRejections(t *testing.T) {
	cases := []struct {
		name   string
		actor  int64
		target int64
		want   error
	}{
		{"admin actor", 2, 3, authz.ErrForbidden},
		{"already admin", 1, 4, authz.ErrAlreadyPromoted},
		{"super admin target", 1, 1, authz.ErrCannotModifySuperAdmin},
		{"unknown user", 1, 99, shared.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, notifier := fixture()
			before := repo.users[tc.target]

			_, err := svc.Promote(context.Background(), principal(repo, tc.actor), tc.target)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, repo.users[tc.target])
			assert.Empty(t, repo.audits)
			assert.Empty(t, notifier.sent)
		})
	}
}

func TestPromoteSucceedsWhenNotificationFails(t *testing.T) {
	svc, repo, notifier := fixture()
	notifier.err = errors.New("queue down")

	_, err := svc.Promote(context.Background(), principal(repo, 1), 3)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, repo.users[3].Role)
}

func TestDelete(t *testing.T) {
	svc, repo, _ := fixture()

	require.NoError(t, svc.Delete(context.Background(), principal(repo, 1), 3))
	_, ok := repo.users[3]
	assert.False(t, ok)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, "user.delete", repo.audits[0].Action)
	assert.Equal(t, now, repo.audits[0].At)
}

func TestDeleteRejections(t *testing.T) {
	cases := []struct {
		name   string
		actor  int64
		target int64
		want   error
	}{
		{"self", 1, 1, authz.ErrSelfTargetNotAllowed},
		{"admin actor", 2, 3, authz.ErrForbidden},
		{"admin cannot touch super admin", 2, 1, authz.ErrCannotModifySuperAdmin},
		{"unknown", 1, 42, shared.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := fixture()
			err := svc.Delete(context.Background(), principal(repo, tc.actor), tc.target)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, repo.audits)
		})
	}
}

func TestDeleteOwnerOfEvents(t *testing.T) {
	svc, repo, _ := fixture()
	repo.owners[4] = true

	err := svc.Delete(context.Background(), principal(repo, 1), 4)
	require.ErrorIs(t, err, ErrHasDependents)
	_, ok := repo.users[4]
	assert.True(t, ok)
}

func TestListUsersScope(t *testing.T) {
	svc, repo, _ := fixture()

	all, total, err := svc.ListUsers(context.Background(), principal(repo, 1), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	ids := make([]int64, len(all))
	for i, u := range all {
		ids[i] = u.ID
	}
	assert.Equal(t, []int64{1, 2, 4}, ids)

	scoped, _, err := svc.ListUsers(context.Background(), principal(repo, 2), ListFilter{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, int64(4), scoped[0].ID)

	_, _, err = svc.ListUsers(context.Background(), principal(repo, 4), ListFilter{})
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestListAdmins(t *testing.T) {
	svc, repo, _ := fixture()

	admins, err := svc.ListAdmins(context.Background(), principal(repo, 1))
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	_, err = svc.ListAdmins(context.Background(), principal(repo, 2))
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestMe(t *testing.T) {
	svc, repo, _ := fixture()

	me, err := svc.Me(context.Background(), principal(repo, 2))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)

	_, err = svc.Me(context.Background(), authz.Principal{})
	assert.ErrorIs(t, err, authz.ErrUnauthorized)
}
