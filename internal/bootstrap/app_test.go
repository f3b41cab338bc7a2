package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skills-backend/internal/billing"
	"skills-backend/internal/shared/config"
)

const webhookSecret = "pdl_ntfset_bootstrap"

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                 "dev",
		LogLevel:            "error",
		ObjectStoreType:     "local",
		LocalStoreDir:       t.TempDir(),
		LLMProvider:         "static",
		JWTSecret:           "bootstrap-test-secret",
		TokenTTL:            time.Hour,
		QuotaMonthlyLimit:   2,
		QuotaWindow:         30 * 24 * time.Hour,
		PaddleWebhookSecret: webhookSecret,
		ExtractionTimeout:   time.Second,
		MaxUploadBytes:      1 << 20,
		PublicBaseURL:       "http://localhost:8080",
	}
}

func send(t *testing.T, app *App, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestBuildDevUsesMemoryRepositories(t *testing.T) {
	app, err := Build(context.Background(), devConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.NotNil(t, app.Router)
	assert.Equal(t, http.StatusOK, send(t, app, http.MethodGet, "/health", nil, nil).Code)
}

func TestBuildProductionRequiresDatabase(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildRejectsUnknownExtractor(t *testing.T) {
	cfg := devConfig(t)
	cfg.LLMProvider = "mystery"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSubscriberJourney(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, devConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	jsonHeader := map[string]string{"Content-Type": "application/json"}
	creds := map[string]string{"email": "dev@example.com", "password": "correct-horse"}
	require.Equal(t, http.StatusCreated, send(t, app, http.MethodPost, "/api/v1/auth/register", jsonBody(t, creds), jsonHeader).Code)

	rec := send(t, app, http.MethodPost, "/api/v1/auth/login", jsonBody(t, creds), jsonHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	var session struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	bearer := map[string]string{"Authorization": "Bearer " + session.AccessToken}

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "cv.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte("Go and PostgreSQL engineer who ships Docker images to AWS."))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return send(t, app, http.MethodPost, "/api/v1/upload-resume", buf.Bytes(), map[string]string{
			"Authorization": bearer["Authorization"],
			"Content-Type":  mw.FormDataContentType(),
		})
	}

	assert.Equal(t, http.StatusForbidden, upload().Code)

	acct, err := app.AccountsRepo.GetByEmail(ctx, "dev@example.com")
	require.NoError(t, err)
	rec = send(t, app, http.MethodGet, "/api/v1/auth/verify-email?token="+acct.VerificationToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusPaymentRequired, upload().Code)

	event := jsonBody(t, map[string]any{
		"event_id":   "evt_boot_1",
		"event_type": "transaction.completed",
		"data": map[string]any{
			"status":      "completed",
			"customer_id": "ctm_boot",
			"custom_data": map[string]any{"account_id": strconv.FormatInt(acct.ID, 10)},
		},
	})
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	rec = send(t, app, http.MethodPost, "/api/v1/billing/webhook", event, map[string]string{
		billing.SignatureHeader: "ts=" + ts + ";h1=" + billing.Sign(webhookSecret, ts, event),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for i := 0; i < 2; i++ {
		rec = upload()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Contains(t, rec.Body.String(), "PostgreSQL")
	assert.Equal(t, http.StatusTooManyRequests, upload().Code)

	rec = send(t, app, http.MethodGet, "/api/v1/me", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		SubscriptionStatus string `json:"subscriptionStatus"`
		Usage              struct {
			Used int `json:"used"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "active", me.SubscriptionStatus)
	assert.Equal(t, 2, me.Usage.Used)

	rec = send(t, app, http.MethodGet, "/api/v1/resumes", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cv.txt")
}
