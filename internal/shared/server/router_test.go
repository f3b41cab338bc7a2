package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/services/health"
	"skills-backend/internal/shared/auth"
	"skills-backend/internal/shared/config"
	"skills-backend/internal/shared/server/middleware"
)

type pingRoutes struct{}

func (pingRoutes) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": middleware.AccountIDFromContext(c)})
	})
}

func newTestRouter(t *testing.T, probe health.Probe) (*gin.Engine, *auth.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer("router-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	checks := health.NewService()
	checks.Register("database", probe)
	r := NewRouter(Deps{
		Config:   config.Config{Env: "dev", CORSAllowOrigin: []string{"http://localhost:3000"}},
		Verifier: issuer,
		Public:   []PublicRoutes{pingRoutes{}},
		Private:  []Routes{pingRoutes{}},
		Health:   checks,
		Limiter:  middleware.NewRateLimiter(func() time.Time { return now }),
	})
	return r, issuer
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	if rec := serve(r, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("api health status %d", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
}

func TestHealthReportsUnreadyStore(t *testing.T) {
	r, _ := newTestRouter(t, func(context.Context) error { return errors.New("down") })
	if rec := serve(r, http.MethodGet, "/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	r, issuer := newTestRouter(t, nil)
	if rec := serve(r, http.MethodGet, "/api/v1/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	token, _, err := issuer.Sign(9, "a@example.com")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if rec := serve(r, http.MethodGet, "/api/v1/me", token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	burst := defaultRateRules[groupAuth].Burst
	for i := 0; i < burst; i++ {
		if rec := serve(r, http.MethodPost, "/api/v1/auth/login", ""); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}
	rec := serve(r, http.MethodPost, "/api/v1/auth/login", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
