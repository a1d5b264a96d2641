package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ticketdesk/backoffice/internal/auth"
	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/rbac"
	"github.com/ticketdesk/backoffice/internal/shared"
	_ "github.com/ticketdesk/backoffice/testing"
)

type stubRepo struct {
	users    map[string]*auth.User
	sessions map[string]int64
	audits   []shared.AuditLog
	auditErr error
}

// WithTx snapshots users and audits and restores them when fn fails.
func (s *stubRepo) WithTx(ctx context.Context, fn func(context.Context, auth.Repository) error) error {
	users := make(map[string]*auth.User, len(s.users))
	for k, u := range s.users {
		copied := *u
		users[k] = &copied
	}
	audits := append([]shared.AuditLog(nil), s.audits...)
	if err := fn(ctx, s); err != nil {
		s.users = users
		s.audits = audits
		return err
	}
	return nil
}

func newStubRepo(users ...*auth.User) *stubRepo {
	repo := &stubRepo{users: map[string]*auth.User{}, sessions: map[string]int64{}}
	for _, u := range users {
		repo.users[u.Email] = u
	}
	return repo
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) CreateUser(_ context.Context, user auth.User) (int64, error) {
	if _, ok := s.users[user.Email]; ok {
		return 0, auth.ErrEmailTaken
	}
	user.ID = int64(len(s.users) + 1)
	s.users[user.Email] = &user
	return user.ID, nil
}

func (s *stubRepo) UpdatePassword(_ context.Context, id int64, hash string, _ time.Time) error {
	for _, u := range s.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return shared.ErrNotFound
}

func (s *stubRepo) TouchLogin(context.Context, int64, time.Time) error { return nil }

func (s *stubRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *stubRepo) RecordAudit(_ context.Context, log shared.AuditLog) error {
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audits = append(s.audits, log)
	return nil
}

type repoPrincipals struct{ repo *stubRepo }

func (p repoPrincipals) ResolvePrincipal(ctx context.Context, id int64) (authz.Principal, error) {
	u, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return authz.Principal{}, err
	}
	return authz.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Permissions: authz.NewPermissionSet(shared.PermCreateEvent)}, nil
}

type harness struct {
	handler  *auth.Handler
	sessions *shared.SessionManager
	tokens   *auth.TokenManager
	repo     *stubRepo
	router   http.Handler
}

func newHarness(t *testing.T, repo *stubRepo) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	tokens, err := auth.NewTokenManager("test-secret-test-secret-test-secret", time.Hour)
	require.NoError(t, err)
	principals := repoPrincipals{repo: repo}
	mw := rbac.Middleware{Principals: principals, Tokens: tokens}
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, shared.NewCSRFManager("csrfsecret"), tokens, principals, mw)

	router := http.NewServeMux()
	router.Handle("/", withSession(sessions, mw.Authenticate(mountAll(handler))))
	return harness{handler: handler, sessions: sessions, tokens: tokens, repo: repo, router: router}
}

func mountAll(h *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	r.Route("/admin", h.MountAdminRoutes)
	return r
}

func withSession(sm *shared.SessionManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.Load(r.Context(), r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ctx := shared.ContextWithSession(r.Context(), sess)
		rec := httptest.NewRecorder()
		next.ServeHTTP(rec, r.WithContext(ctx))
		if err := sm.Commit(ctx, w, sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		_, _ = w.Write(rec.Body.Bytes())
	})
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func post(t *testing.T, h http.Handler, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *httpx.ErrorBody
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestLoginSuccessIssuesTokenAndSession(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, Email: "ana@example.com", Name: "Ana", PasswordHash: hashed(t, "correctpass"), Role: authz.RoleAdmin, IsActive: true})
	h := newHarness(t, repo)

	rec := post(t, h.router, "/auth/login", `{"email":"ana@example.com","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decode(t, rec)
	assert.True(t, env.Success)
	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, int64(1), resp.User.ID)
	assert.Equal(t, []string{shared.PermCreateEvent}, resp.Permissions)
	assert.NotContains(t, string(env.Data), "passwordHash")

	id, err := h.tokens.SubjectID(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NotEmpty(t, resp.CSRFToken)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == h.sessions.CookieName() {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie must be set")
	assert.Equal(t, int64(1), repo.sessions[cookie.Value])
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, Email: "ana@example.com", PasswordHash: hashed(t, "correctpass"), Role: authz.RoleAdmin, IsActive: true})
	h := newHarness(t, repo)

	rec := post(t, h.router, "/auth/login", `{"email":"ana@example.com","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "Invalid email or password", env.Error.Message)

	rec = post(t, h.router, "/auth/login", `{"email":"nobody@example.com","password":"whatever1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsInactiveAndCustomerAccounts(t *testing.T) {
	repo := newStubRepo(
		&auth.User{ID: 1, Email: "off@example.com", PasswordHash: hashed(t, "correctpass"), Role: authz.RoleAdmin, IsActive: false},
		&auth.User{ID: 2, Email: "cus@example.com", PasswordHash: hashed(t, "correctpass"), Role: authz.RoleCustomer, IsActive: true},
	)
	h := newHarness(t, repo)

	assert.Equal(t, http.StatusUnauthorized, post(t, h.router, "/auth/login", `{"email":"off@example.com","password":"correctpass"}`).Code)
	assert.Equal(t, http.StatusForbidden, post(t, h.router, "/auth/login", `{"email":"cus@example.com","password":"correctpass"}`).Code)
}

func TestRegisterCreatesAdminWithoutGrants(t *testing.T) {
	repo := newStubRepo()
	h := newHarness(t, repo)

	rec := post(t, h.router, "/auth/register", `{"email":"New@Example.com","name":"Newbie","password":"longenough"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stored := repo.users["new@example.com"]
	require.NotNil(t, stored)
	assert.Equal(t, authz.RoleAdmin, stored.Role)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, auth.BcryptCost, cost)

	rec = post(t, h.router, "/auth/register", `{"email":"new@example.com","name":"Again","password":"longenough"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(t, h.router, "/auth/register", `{"email":"short@example.com","name":"Shorty","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "password", env.Error.Field)
}

func TestChangePasswordRequiresBearerOrSession(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, Email: "ana@example.com", PasswordHash: hashed(t, "correctpass"), Role: authz.RoleAdmin, IsActive: true})
	h := newHarness(t, repo)

	rec := post(t, h.router, "/admin/change-password", `{"currentPassword":"correctpass","newPassword":"evenbetter"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := h.tokens.Issue(authz.Principal{ID: 1, Role: authz.RoleAdmin})
	require.NoError(t, err)
	withToken := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }

	rec = post(t, h.router, "/admin/change-password", `{"currentPassword":"nope","newPassword":"evenbetter"}`, withToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h.router, "/admin/change-password", `{"currentPassword":"correctpass","newPassword":"evenbetter"}`, withToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["ana@example.com"].PasswordHash), []byte("evenbetter")))
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := newStubRepo(&auth.User{ID: 1, Email: "ana@example.com", PasswordHash: hashed(t, "correctpass"), Role: authz.RoleAdmin, IsActive: true})
	h := newHarness(t, repo)

	login := post(t, h.router, "/auth/login", `{"email":"ana@example.com","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec := post(t, h.router, "/auth/logout", `{}`, func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, repo.sessions)
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	tokens, err := auth.NewTokenManager("secret-one-secret-one-secret-one", time.Millisecond)
	require.NoError(t, err)
	token, _, err := tokens.Issue(authz.Principal{ID: 5, Role: authz.RoleAdmin})
	require.NoError(t, err)

	other, err := auth.NewTokenManager("secret-two-secret-two-secret-two", time.Hour)
	require.NoError(t, err)
	_, err = other.SubjectID(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	time.Sleep(1100 * time.Millisecond)
	_, err = tokens.SubjectID(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = auth.NewTokenManager("", time.Hour)
	require.Error(t, err)
}

func TestBootstrapSuperAdmin(t *testing.T) {
	repo := newStubRepo()
	svc := auth.NewService(repo)

	user, err := svc.BootstrapSuperAdmin(context.Background(), auth.RegisterRequest{Email: "Root@Example.com", Name: "Root", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleSuperAdmin, user.Role)
	assert.Equal(t, "root@example.com", user.Email)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, "user.bootstrap", repo.audits[0].Action)

	_, err = svc.BootstrapSuperAdmin(context.Background(), auth.RegisterRequest{Email: "root@example.com", Name: "Root", Password: "correct horse"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = svc.BootstrapSuperAdmin(context.Background(), auth.RegisterRequest{Email: "not-an-email", Name: "Root", Password: "correct horse"})
	var fe *httpx.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "email", fe.Field)
}

func TestRegisterRollsBackWhenAuditFails(t *testing.T) {
	repo := newStubRepo()
	repo.auditErr = errors.New("audit insert failed")
	svc := auth.NewService(repo)

	_, err := svc.Register(context.Background(), auth.RegisterRequest{Email: "bo@example.com", Name: "Bo", Password: "longenough"})
	require.Error(t, err)
	assert.Empty(t, repo.users)
	assert.Empty(t, repo.audits)

	repo.auditErr = nil
	user, err := svc.Register(context.Background(), auth.RegisterRequest{Email: "bo@example.com", Name: "Bo", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, user.Role)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, user.ID, repo.audits[0].ActorID)
}
