package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aicourt/backend/internal/models"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/pkg/tokens"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-jwt-secret")

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return &repo.GormRepo{DB: db}
}

func seedUser(t *testing.T, r *repo.GormRepo, role string, active bool) *models.User {
	t.Helper()

	user := &models.User{
		Email:        role + "@example.com",
		PasswordHash: "irrelevant",
		Role:         role,
		DisplayName:  "Test " + role,
		IsActive:     active,
	}
	require.NoError(t, r.CreateUser(t.Context(), user))
	return user
}

func issueFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := tokens.Issue(testSecret, user.ID.String(), user.Email, user.Role, time.Now().UTC())
	require.NoError(t, err)
	return token
}

// invoke runs the chain against GET / and returns the recorder plus the
// handler error (echo handles HTTPError translation at a layer above).
func invoke(t *testing.T, handler echo.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, handler(c)
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, code, he.Code)
	return he
}

func TestRequireAuth_MissingOrMalformedHeader(t *testing.T) {
	t.Parallel()

	m := NewTokenAuth(testSecret, newTestRepo(t))
	h := m.RequireAuth(okHandler)

	tests := []struct {
		name   string
		header string
	}{
		{name: "absent", header: ""},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := invoke(t, h, tt.header)
			requireHTTPError(t, err, http.StatusUnauthorized)
		})
	}
}

func TestRequireAuth_ExpiredTokenHasDistinctReason(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	m := NewTokenAuth(testSecret, r)
	user := seedUser(t, r, models.RoleCitizen, true)

	expired, err := tokens.IssueWithExpiry(testSecret, user.ID.String(), user.Email, user.Role,
		time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = invoke(t, m.RequireAuth(okHandler), "Bearer "+expired)
	he := requireHTTPError(t, err, http.StatusUnauthorized)
	assert.Equal(t, "token expired", he.Message)
}

func TestRequireAuth_AttachesPrincipal(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	m := NewTokenAuth(testSecret, r)
	user := seedUser(t, r, models.RoleCitizen, true)

	var got *models.User
	h := m.RequireAuth(func(c echo.Context) error {
		p, ok := Principal(c)
		require.True(t, ok)
		got = p
		return c.NoContent(http.StatusOK)
	})

	_, err := invoke(t, h, "Bearer "+issueFor(t, user))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Role, got.Role)
}

func TestRequireAuth_DeactivatedAccountRejectedDespiteValidToken(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	m := NewTokenAuth(testSecret, r)
	user := seedUser(t, r, models.RoleCitizen, true)
	token := issueFor(t, user)

	_, err := invoke(t, m.RequireAuth(okHandler), "Bearer "+token)
	require.NoError(t, err)

	require.NoError(t, r.DB.Model(&models.User{}).
		Where("id = ?", user.ID).Update("is_active", false).Error)

	// the token itself is still structurally valid, the re-fetch kills it
	_, err = invoke(t, m.RequireAuth(okHandler), "Bearer "+token)
	requireHTTPError(t, err, http.StatusUnauthorized)
}

func TestRequireAuth_DeletedAccountRejected(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	m := NewTokenAuth(testSecret, r)
	user := seedUser(t, r, models.RoleCitizen, true)
	token := issueFor(t, user)

	require.NoError(t, r.DB.Where("id = ?", user.ID).Delete(&models.User{}).Error)

	_, err := invoke(t, m.RequireAuth(okHandler), "Bearer "+token)
	requireHTTPError(t, err, http.StatusUnauthorized)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	m := NewTokenAuth(testSecret, r)
	citizen := seedUser(t, r, models.RoleCitizen, true)
	official := seedUser(t, r, models.RoleOfficial, true)

	h := m.RequireAuth(RequireRole(models.RoleOfficial)(okHandler))

	_, err := invoke(t, h, "Bearer "+issueFor(t, citizen))
	requireHTTPError(t, err, http.StatusForbidden)

	rec, err := invoke(t, h, "Bearer "+issueFor(t, official))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_WithoutPrincipal(t *testing.T) {
	t.Parallel()

	_, err := invoke(t, RequireRole(models.RoleOfficial)(okHandler), "")
	requireHTTPError(t, err, http.StatusUnauthorized)
}

func TestOptionalAuth(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	m := NewTokenAuth(testSecret, r)
	user := seedUser(t, r, models.RoleCitizen, true)

	var principal *models.User
	var present bool
	h := m.OptionalAuth(func(c echo.Context) error {
		principal, present = Principal(c)
		return c.NoContent(http.StatusOK)
	})

	// identified caller
	_, err := invoke(t, h, "Bearer "+issueFor(t, user))
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, user.ID, principal.ID)

	// any failure downgrades to anonymous continue
	for _, header := range []string{"", "Bearer junk"} {
		principal, present = nil, false
		rec, err := invoke(t, h, header)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, present)
		assert.Nil(t, principal)
	}
}
