package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
	tag   pgconn.CommandTag
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.tag, f.err
}

func TestIdempotencyConflict(t *testing.T) {
	db := &fakeExecer{err: &pgconn.PgError{Code: "23505"}}
	store := NewIdempotencyStore(db)

	err := store.CheckAndInsert(context.Background(), "abc", "events.create", 3)
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.Len(t, db.calls, 1)
	assert.Equal(t, []any{"abc", "events.create", int64(3)}, db.calls[0].args[:3])
}

func TestIdempotencyRequiresKey(t *testing.T) {
	store := NewIdempotencyStore(&fakeExecer{})
	require.Error(t, store.CheckAndInsert(context.Background(), "", "events.create", 3))
	require.Error(t, store.CheckAndInsert(context.Background(), "abc", "", 3))
}

func TestIdempotencyCleanup(t *testing.T) {
	db := &fakeExecer{tag: pgconn.NewCommandTag("DELETE 4")}
	store := NewIdempotencyStore(db)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	n, err := store.Cleanup(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, now.Add(-48*time.Hour), db.calls[0].args[0])
}

func TestUniqueViolationDetection(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(wrapped))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
}

func TestAuditLoggerValidates(t *testing.T) {
	db := &fakeExecer{}
	logger := NewAuditLogger(db)
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "create"}))

	err := logger.Record(context.Background(), AuditLog{ActorID: 1, Action: "grant", Entity: "user", EntityID: "4", Meta: map[string]any{"permission": "CREATE_EVENT"}})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.JSONEq(t, `{"permission":"CREATE_EVENT"}`, string(db.calls[0].args[4].([]byte)))

	tx := &fakeExecer{}
	require.NoError(t, logger.WithTx(tx).Record(context.Background(), AuditLog{ActorID: 1, Action: "grant", Entity: "user", EntityID: "4"}))
	assert.Len(t, tx.calls, 1)
	assert.Len(t, db.calls, 1)
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "Category not found", UserSafeMessage(errors.New("events: category not found")))
	assert.Equal(t, "Permission already granted", UserSafeMessage(errors.New("authz: permission already granted")))
	assert.Equal(t, "unexpected error, please try again", UserSafeMessage(errors.New("rbac: ERROR: relation missing (SQLSTATE 42P01)")))
	assert.Equal(t, "", UserSafeMessage(nil))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 20, 45)
	assert.Equal(t, 3, p.Pages)
	assert.True(t, p.HasNext)
	assert.False(t, p.HasPrev)

	p = NewPagination(0, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit)
	assert.False(t, p.HasNext)

	assert.Equal(t, 40, Offset(3, 20))
	assert.Equal(t, 0, Offset(0, 20))
}
