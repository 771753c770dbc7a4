package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/vaultbox/internal/config"
	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/metrics"
	"github.com/prn-tf/vaultbox/internal/repository/sqlite"
	"github.com/prn-tf/vaultbox/internal/service"
	"github.com/prn-tf/vaultbox/internal/session"
	"github.com/prn-tf/vaultbox/internal/storage/filesystem"
)

const testCookie = "vaultbox_session"

type testServer struct {
	*httptest.Server
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, maxFileSize int64) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.Open(ctx, config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        sqlite.MemoryPath,
		AutoMigrate: true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir := t.TempDir()
	backend, err := filesystem.NewBackend(filepath.Join(dir, "blobs"), filepath.Join(dir, "tmp"), logger)
	require.NoError(t, err)

	store := session.NewMemoryStore()
	t.Cleanup(store.Stop)

	m := metrics.New()
	sessions := service.NewSessionService(db.Repos.User, store, time.Hour, m, logger)
	files := service.NewFileService(db.Repos.Object, backend, m, logger, service.FileServiceConfig{MaxFileSize: maxFileSize})
	users := service.NewUserService(db.Repos.User, files, logger)

	_, err = users.Bootstrap(ctx, "admin", "admin123")
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Mode:           ModeAll,
		Resolver:       sessions,
		CookieName:     testCookie,
		AuthHandler:    NewAuthHandler(sessions, CookieConfig{Name: testCookie, TTL: time.Hour}, logger),
		AdminHandler:   NewAdminHandler(users, logger),
		FileHandler:    NewFileHandler(files, 1<<20, logger),
		Health:         db.Health,
		Metrics:        m,
		AllowedOrigins: []string{"http://app.example"},
		Logger:         logger,
	})

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, metrics: m}
}

// client is a browser-like session: it keeps its own cookie jar.
type client struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func (s *testServer) newClient(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: s.URL, hc: &http.Client{Jar: jar}}
}

func (c *client) do(req *http.Request) (int, []byte, http.Header) {
	c.t.Helper()
	resp, err := c.hc.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, body, resp.Header
}

func (c *client) get(path string) (int, []byte, http.Header) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) postJSON(path string, body any) (int, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	status, respBody, _ := c.do(req)
	return status, respBody
}

func (c *client) login(username, password string) (int, map[string]string) {
	c.t.Helper()
	status, body := c.postJSON("/login", map[string]string{"username": username, "password": password})
	var out map[string]string
	_ = json.Unmarshal(body, &out)
	return status, out
}

func (c *client) upload(files map[string]string) (int, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(c.t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, c.base+"/dashboard/upload", &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, body, _ := c.do(req)
	return status, body
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e.Error
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, 0)
	c := srv.newClient(t)

	status, out := c.login("admin", "admin123")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", out["username"])
	assert.Equal(t, "admin", out["role"])
	assert.NotEmpty(t, out["user_id"])

	status, _ = c.login("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.login("nobody", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := c.postJSON("/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "invalid input")

	req, _ := http.NewRequest(http.MethodPost, c.base+"/login", strings.NewReader("{not json"))
	status, _, _ = c.do(req)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLoginCookie(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, err := http.Post(srv.URL+"/login", "application/json", strings.NewReader(`{"username":"admin","password":"admin123"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == testCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t, 0)
	c := srv.newClient(t)

	status, body, _ := c.get("/logout")
	require.Equal(t, http.StatusOK, status, "logout without a session succeeds")
	assert.JSONEq(t, `{"status":"logged out"}`, string(body))

	status, _ = c.login("admin", "admin123")
	require.Equal(t, http.StatusOK, status)
	status, _, _ = c.get("/admin")
	require.Equal(t, http.StatusOK, status)

	status, _, _ = c.get("/logout")
	require.Equal(t, http.StatusOK, status)

	status, _, _ = c.get("/admin")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminGuards(t *testing.T) {
	srv := newTestServer(t, 0)
	anon := srv.newClient(t)
	admin := srv.newClient(t)
	user := srv.newClient(t)

	status, _ := admin.login("admin", "admin123")
	require.Equal(t, http.StatusOK, status)
	status, _ = admin.postJSON("/admin/create_user", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, status)
	status, _ = user.login("alice", "pw1")
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		name   string
		c      *client
		status int
	}{
		{name: "anonymous gets 401", c: anon, status: http.StatusUnauthorized},
		{name: "regular user gets 403", c: user, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := tt.c.get("/admin")
			assert.Equal(t, tt.status, status)

			status, _ = tt.c.postJSON("/admin/create_user", map[string]string{"username": "x", "password": "y"})
			assert.Equal(t, tt.status, status)

			status, _ = tt.c.postJSON("/admin/delete_user/whatever", nil)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestAdminUserLifecycle(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.newClient(t)

	_, me := admin.login("admin", "admin123")

	status, body := admin.postJSON("/admin/create_user", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, status)
	var created statusResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "created", created.Status)
	assert.NotEmpty(t, created.UserID)

	status, body = admin.postJSON("/admin/create_user", map[string]string{"username": "alice", "password": "other"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "already exists")

	status, _ = admin.postJSON("/admin/create_user", map[string]string{"username": "eve", "password": "pw", "role": "root"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = admin.postJSON("/admin/create_user", map[string]string{"username": "ops", "password": "pw", "role": "admin"})
	assert.Equal(t, http.StatusOK, status)

	status, body, _ = admin.get("/admin")
	require.Equal(t, http.StatusOK, status)
	var users []map[string]string
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Len(t, users, 3)
	for _, u := range users {
		assert.ElementsMatch(t, []string{"user_id", "username", "role"}, keys(u))
	}

	status, body = admin.postJSON("/admin/delete_user/"+me["user_id"], nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrSelfDeletion.Error(), errorMessage(t, body))

	status, _ = admin.postJSON("/admin/delete_user/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = admin.postJSON("/admin/delete_user/"+created.UserID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"User deleted"}`, string(body))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestFileEndpoints_RequireSession(t *testing.T) {
	srv := newTestServer(t, 0)
	anon := srv.newClient(t)

	status, _, _ := anon.get("/dashboard")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = anon.upload(map[string]string{"a.txt": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = anon.get("/dashboard/download/00000000-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = anon.postJSON("/dashboard/delete/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUploadErrors(t *testing.T) {
	srv := newTestServer(t, 4)
	admin := srv.newClient(t)
	admin.login("admin", "admin123")

	status, body := admin.upload(map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrNoFileProvided.Error(), errorMessage(t, body))

	status, _ = admin.postJSON("/dashboard/upload", map[string]string{"not": "multipart"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = admin.upload(map[string]string{"big.bin": "12345"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestScenario_AliceAndBob(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.newClient(t)
	alice := srv.newClient(t)
	bob := srv.newClient(t)

	status, _ := admin.login("admin", "admin123")
	require.Equal(t, http.StatusOK, status)

	status, body := admin.postJSON("/admin/create_user", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, status)
	var aliceUser statusResponse
	require.NoError(t, json.Unmarshal(body, &aliceUser))

	status, _ = admin.postJSON("/admin/create_user", map[string]string{"username": "bob", "password": "pw2"})
	require.Equal(t, http.StatusOK, status)

	status, me := alice.login("alice", "pw1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user", me["role"])
	assert.Equal(t, aliceUser.UserID, me["user_id"])

	status, body = alice.upload(map[string]string{"a.txt": "hello from alice"})
	require.Equal(t, http.StatusOK, status)
	var up uploadResponse
	require.NoError(t, json.Unmarshal(body, &up))
	require.Len(t, up.Files, 1)
	fileID := up.Files[0].FileID
	assert.NotEmpty(t, fileID)
	assert.Equal(t, "a.txt", up.Files[0].Filename)

	status, body, _ = alice.get("/dashboard")
	require.Equal(t, http.StatusOK, status)
	var listing []map[string]any
	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing, 1)
	assert.Equal(t, "a.txt", listing[0]["filename"])
	assert.Equal(t, fileID, listing[0]["file_id"])
	assert.Contains(t, listing[0], "upload_date")

	status, body, header := alice.get("/dashboard/download/" + fileID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello from alice", string(body))
	assert.Equal(t, `attachment; filename=a.txt`, header.Get("Content-Disposition"))

	status, _ = bob.login("bob", "pw2")
	require.Equal(t, http.StatusOK, status)

	status, body, _ = bob.get("/dashboard/download/" + fileID)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.ErrObjectNotFound.Error(), errorMessage(t, body))

	status, _ = bob.postJSON("/dashboard/delete/"+fileID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body, _ = bob.get("/dashboard")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = admin.postJSON("/admin/delete_user/"+aliceUser.UserID, nil)
	require.Equal(t, http.StatusOK, status)

	for _, c := range []*client{alice, bob, admin} {
		status, _, _ = c.get("/dashboard/download/" + fileID)
		assert.Equal(t, http.StatusNotFound, status)
	}
}

func TestDeleteFile(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.newClient(t)
	admin.login("admin", "admin123")

	_, body := admin.upload(map[string]string{"notes.txt": "n"})
	var up uploadResponse
	require.NoError(t, json.Unmarshal(body, &up))
	id := up.Files[0].FileID

	status, body := admin.postJSON("/dashboard/delete/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"File deleted"}`, string(body))

	status, _ = admin.postJSON("/dashboard/delete/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = admin.postJSON("/dashboard/delete/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, 0)
	c := srv.newClient(t)

	status, body, _ := c.get("/health")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	c.get("/dashboard")
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/dashboard", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, 0)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/login", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrSelfDeletion, http.StatusBadRequest},
		{fmt.Errorf("%w: alice", domain.ErrUserAlreadyExists), http.StatusBadRequest},
		{domain.ErrInvalidRole, http.StatusBadRequest},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNoFileProvided, http.StatusBadRequest},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrObjectNotFound, http.StatusNotFound},
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("%w: db down", service.ErrInternalError), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestServiceModes(t *testing.T) {
	mode, ok := ParseMode("files")
	require.True(t, ok)
	assert.True(t, mode.ServesFiles())
	assert.False(t, mode.ServesAuth())

	_, ok = ParseMode("everything")
	assert.False(t, ok)

	h := NewRouter(RouterConfig{
		Mode:       ModeFiles,
		Resolver:   nilResolver{},
		CookieName: testCookie,
		Logger:     zerolog.Nop(),
	}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "files mode does not serve login")
}

type nilResolver struct{}

func (nilResolver) Current(context.Context, string) (*domain.Identity, error) { return nil, nil }
