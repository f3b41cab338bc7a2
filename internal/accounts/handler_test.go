package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skills-backend/internal/quota"
	"skills-backend/internal/shared/auth"
	"skills-backend/internal/shared/server/middleware"
)

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendVerification(_ context.Context, email, link string) error {
	m.record("verify:"+email, link)
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.record("reset:"+email, link)
	return nil
}

func (m *captureMailer) record(key, link string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = make(map[string]string)
	}
	m.links[key] = link
}

func (m *captureMailer) token(t *testing.T, key string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[key]
	require.True(t, ok, "no mail recorded for %s", key)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	return parsed.Query().Get("token")
}

func newTestRouter(t *testing.T) (*gin.Engine, *MemoryRepo, *captureMailer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	repo := NewMemoryRepo()
	mailer := &captureMailer{}
	svc := NewService(repo, mailer, issuer, quota.NewPolicy(1000, 0), "http://localhost:8080")
	h := NewHandler(svc)

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterPublicRoutes(api)
	protected := api.Group("")
	protected.Use(middleware.Auth(issuer))
	h.RegisterRoutes(protected)
	return r, repo, mailer
}

func doJSON(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	r, repo, mailer := newTestRouter(t)

	resp := doJSON(r, http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "dev@example.com", Password: "s3cret-pass"}, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	stored, err := repo.GetByEmail(context.Background(), "dev@example.com")
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	assert.Equal(t, StatusInactive, stored.SubscriptionStatus)

	token := mailer.token(t, "verify:dev@example.com")
	resp = doJSON(r, http.MethodGet, "/api/v1/auth/verify-email?token="+token, nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = doJSON(r, http.MethodGet, "/api/v1/auth/verify-email?token="+token, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(r, http.MethodPost, "/api/v1/auth/login", credentialsRequest{Email: "dev@example.com", Password: "s3cret-pass"}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var session struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)

	resp = doJSON(r, http.MethodGet, "/api/v1/me", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var me map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, true, me["isVerified"])
	assert.Equal(t, "inactive", me["subscriptionStatus"])
	usage := me["usage"].(map[string]any)
	assert.Equal(t, float64(1000), usage["limit"])
	assert.Equal(t, float64(0), usage["used"])
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	r, _, _ := newTestRouter(t)
	body := credentialsRequest{Email: "dev@example.com", Password: "s3cret-pass"}
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/v1/auth/register", body, "").Code)
	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, "/api/v1/auth/register", body, "").Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	r, _, _ := newTestRouter(t)
	resp := doJSON(r, http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "dev@example.com", Password: "short"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	r, repo, _ := newTestRouter(t)
	resp := doJSON(r, http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "dev@example.com", Password: strings.Repeat("p", 73)}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	_, err := repo.GetByEmail(context.Background(), "dev@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	resp = doJSON(r, http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "dev@example.com", Password: strings.Repeat("p", 72)}, "")
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "dev@example.com", Password: "s3cret-pass"}, "").Code)

	resp := doJSON(r, http.MethodPost, "/api/v1/auth/login", credentialsRequest{Email: "dev@example.com", Password: "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = doJSON(r, http.MethodPost, "/api/v1/auth/login", credentialsRequest{Email: "ghost@example.com", Password: "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	r, _, mailer := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "dev@example.com", Password: "s3cret-pass"}, "").Code)

	resp := doJSON(r, http.MethodPost, "/api/v1/auth/forgot-password", emailRequest{Email: "dev@example.com"}, "")
	require.Equal(t, http.StatusAccepted, resp.Code)
	resp = doJSON(r, http.MethodPost, "/api/v1/auth/forgot-password", emailRequest{Email: "ghost@example.com"}, "")
	require.Equal(t, http.StatusAccepted, resp.Code)

	token := mailer.token(t, "reset:dev@example.com")
	resp = doJSON(r, http.MethodPost, "/api/v1/auth/reset-password", resetPasswordRequest{Token: token, NewPassword: "brand-new-pass"}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = doJSON(r, http.MethodPost, "/api/v1/auth/reset-password", resetPasswordRequest{Token: token, NewPassword: "another-pass"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(r, http.MethodPost, "/api/v1/auth/login", credentialsRequest{Email: "dev@example.com", Password: "brand-new-pass"}, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMeRequiresToken(t *testing.T) {
	r, _, _ := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/api/v1/me", nil, "").Code)
}
