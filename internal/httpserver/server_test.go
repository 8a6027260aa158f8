package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/aicourt/backend/internal/middleware"
	"github.com/aicourt/backend/internal/models"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/internal/service"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-jwt-secret")

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Document{}))

	gormRepo := &repo.GormRepo{DB: db}

	e := echo.New()
	Register(e, &Deps{
		Auth: &AuthHTTP{Svc: &service.AuthService{Repo: gormRepo, JWTSecret: testSecret}},
		Documents: &DocumentHTTP{Svc: &service.DocumentService{
			Repo:  gormRepo,
			Blobs: &memBlobStore{objects: map[string][]byte{}},
		}},
		TokenAuth:  middleware.NewTokenAuth(testSecret, gormRepo),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSOrigin: "*",
	})
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

func signupAndToken(t *testing.T, e *echo.Echo, email, role string) string {
	t.Helper()

	rec, resp := doJSON(t, e, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       email,
		"password":    "Secret123",
		"displayName": "Test User",
		"role":        role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func uploadDocument(t *testing.T, e *echo.Echo, token string) string {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="document"; filename="petition.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test content"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("description", "first filing"))
	require.NoError(t, w.WriteField("tags", `["civil"]`))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Document struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			IsSigned bool   `json:"isSigned"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusPending, resp.Document.Status)
	assert.False(t, resp.Document.IsSigned)
	return resp.Document.ID
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "bad email", body: map[string]any{"email": "nope", "password": "Secret123", "displayName": "AB", "role": "citizen"}},
		{name: "weak password", body: map[string]any{"email": "a@b.com", "password": "alllower1", "displayName": "AB", "role": "citizen"}},
		{name: "short password", body: map[string]any{"email": "a@b.com", "password": "Ab1", "displayName": "AB", "role": "citizen"}},
		{name: "bad role", body: map[string]any{"email": "a@b.com", "password": "Secret123", "displayName": "AB", "role": "admin"}},
		{name: "short display name", body: map[string]any{"email": "a@b.com", "password": "Secret123", "displayName": "A", "role": "citizen"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, resp := doJSON(t, e, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "ValidationFailed", resp["error"])
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	signupAndToken(t, e, "user@example.com", models.RoleCitizen)

	rec, resp := doJSON(t, e, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "USER@example.com",
		"password":    "Secret123",
		"displayName": "Test User",
		"role":        models.RoleCitizen,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AlreadyExists", resp["error"])
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	signupAndToken(t, e, "user@example.com", models.RoleCitizen)

	rec1, resp1 := doJSON(t, e, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "user@example.com", "password": "Wrong123",
	})
	rec2, resp2 := doJSON(t, e, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ghost@example.com", "password": "Secret123",
	})

	assert.Equal(t, http.StatusUnauthorized, rec1.Code)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	assert.Equal(t, resp1["error"], resp2["error"])
	assert.Equal(t, resp1["message"], resp2["message"])
}

func TestFirebaseAuth_LoginFallbackToSignup(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	body := map[string]any{
		"email":       "fed@example.com",
		"firebaseUid": "fb-uid-1",
		"provider":    "google",
		"displayName": "Fed User",
	}

	rec, resp := doJSON(t, e, http.MethodPost, "/api/auth/firebase-login", "", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", resp["error"])

	rec, resp = doJSON(t, e, http.MethodPost, "/api/auth/firebase-signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, resp["token"])

	rec, _ = doJSON(t, e, http.MethodPost, "/api/auth/firebase-login", "", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doJSON(t, e, http.MethodPost, "/api/auth/firebase-signup", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AlreadyExists", resp["error"])
}

func TestProfile_RequiresAuth(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	rec, _ := doJSON(t, e, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := signupAndToken(t, e, "user@example.com", models.RoleCitizen)
	rec, resp := doJSON(t, e, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user, ok := resp["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user@example.com", user["email"])
	// password hash never leaves the server
	_, leaked := user["passwordHash"]
	assert.False(t, leaked)
}

func TestChangePassword_Flow(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	token := signupAndToken(t, e, "user@example.com", models.RoleCitizen)

	rec, resp := doJSON(t, e, http.MethodPut, "/api/auth/change-password", token, map[string]any{
		"currentPassword": "Nope123",
		"newPassword":     "Fresh456",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidCredentials", resp["error"])

	rec, _ = doJSON(t, e, http.MethodPut, "/api/auth/change-password", token, map[string]any{
		"currentPassword": "Secret123",
		"newPassword":     "Fresh456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, e, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "user@example.com", "password": "Fresh456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestCustodyScenario walks the full lifecycle: a citizen uploads, an
// official signs, the owner deletes the signed document, and a third citizen
// never gets in.
func TestCustodyScenario(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	t1 := signupAndToken(t, e, "user@example.com", models.RoleCitizen)
	t2 := signupAndToken(t, e, "judge@example.com", models.RoleOfficial)
	t3 := signupAndToken(t, e, "other@example.com", models.RoleCitizen)

	docID := uploadDocument(t, e, t1)

	// a citizen may not sign, not even the owner
	rec, resp := doJSON(t, e, http.MethodPatch, "/api/documents/"+docID+"/sign", t1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", resp["error"])

	// the official signs: signed=true, status approved
	rec, resp = doJSON(t, e, http.MethodPatch, "/api/documents/"+docID+"/sign", t2, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := resp["document"].(map[string]any)
	assert.Equal(t, true, doc["isSigned"])
	assert.Equal(t, models.StatusApproved, doc["status"])

	// signing twice fails
	rec, resp = doJSON(t, e, http.MethodPatch, "/api/documents/"+docID+"/sign", t2, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AlreadySigned", resp["error"])

	// the owner downloads their own document
	rec, _ = doJSON(t, e, http.MethodGet, "/api/documents/"+docID+"/download", t1, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "petition.pdf")

	// a different citizen may not download it
	rec, resp = doJSON(t, e, http.MethodGet, "/api/documents/"+docID+"/download", t3, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", resp["error"])

	// ownership, not signed state, gates delete
	rec, _ = doJSON(t, e, http.MethodDelete, "/api/documents/"+docID, t1, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = doJSON(t, e, http.MethodGet, "/api/documents/"+docID, t1, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentListing_RoleScoping(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	t1 := signupAndToken(t, e, "user@example.com", models.RoleCitizen)
	t2 := signupAndToken(t, e, "judge@example.com", models.RoleOfficial)
	t3 := signupAndToken(t, e, "other@example.com", models.RoleCitizen)

	uploadDocument(t, e, t1)
	uploadDocument(t, e, t3)

	// citizens see only their own
	rec, resp := doJSON(t, e, http.MethodGet, "/api/documents/my-documents", t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["documents"], 1)

	// /all is official-only
	rec, _ = doJSON(t, e, http.MethodGet, "/api/documents/all", t1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = doJSON(t, e, http.MethodGet, "/api/documents/all", t2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["documents"], 2)

	pagination := resp["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["total"])
}

func TestUpload_RejectsBadFiles(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	token := signupAndToken(t, e, "user@example.com", models.RoleCitizen)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="document"; filename="virus.exe"`)
	header.Set("Content-Type", "application/x-msdownload")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidFileType")
}

func TestStatusUpdate_OfficialOnlyAndUnordered(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	t1 := signupAndToken(t, e, "user@example.com", models.RoleCitizen)
	t2 := signupAndToken(t, e, "judge@example.com", models.RoleOfficial)
	docID := uploadDocument(t, e, t1)

	rec, _ := doJSON(t, e, http.MethodPatch, "/api/documents/"+docID+"/status", t1,
		map[string]any{"status": models.StatusReviewed})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// any status may follow any other
	for _, status := range []string{models.StatusRejected, models.StatusReviewed, models.StatusPending} {
		rec, resp := doJSON(t, e, http.MethodPatch, "/api/documents/"+docID+"/status", t2,
			map[string]any{"status": status})
		require.Equal(t, http.StatusOK, rec.Code)
		doc := resp["document"].(map[string]any)
		assert.Equal(t, status, doc["status"])
	}

	rec, resp := doJSON(t, e, http.MethodPatch, "/api/documents/"+docID+"/status", t2,
		map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", resp["error"])
}
