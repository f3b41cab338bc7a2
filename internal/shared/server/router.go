package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/services/health"
	"skills-backend/internal/shared/config"
	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/server/middleware"
	"skills-backend/internal/shared/server/respond"
)

// PublicRoutes is implemented by handlers with unauthenticated endpoints.
type PublicRoutes interface {
	RegisterPublicRoutes(rg *gin.RouterGroup)
}

// Routes is implemented by handlers with authenticated endpoints.
type Routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Deps is everything the router mounts.
type Deps struct {
	Config   config.Config
	Verifier middleware.TokenVerifier
	Public   []PublicRoutes
	Private  []Routes
	// Health probes backing stores; nil means always healthy.
	Health  *health.Service
	Limiter *middleware.RateLimiter
}

// Rate limit groups.
const (
	groupAuth    = "AUTH"
	groupUpload  = "UPLOAD"
	groupWebhook = "WEBHOOK"
	groupDefault = "DEFAULT"
)

var defaultRateRules = map[string]middleware.RateLimitRule{
	groupAuth:    {Rate: 0.5, Burst: 10},
	groupUpload:  {Rate: 1, Burst: 10},
	groupDefault: {Rate: 5, Burst: 20},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(d.Config.CORSAllowOrigin),
	)

	healthCheck := healthHandler(d.Health)
	r.GET("/health", healthCheck)
	r.GET("/metrics", metrics.Handler())

	limiter := d.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        defaultRateRules,
		DefaultGroup: groupDefault,
		GroupFor:     rateGroup,
		Limiter:      limiter,
	})

	api := r.Group("/api/v1")
	api.GET("/health", healthCheck)

	public := api.Group("")
	public.Use(rateLimit)
	for _, h := range d.Public {
		h.RegisterPublicRoutes(public)
	}

	private := api.Group("")
	private.Use(middleware.Auth(d.Verifier), rateLimit)
	for _, h := range d.Private {
		h.RegisterRoutes(private)
	}

	return r
}

func rateGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case strings.HasPrefix(path, "/api/v1/auth/"):
		return groupAuth
	case path == "/api/v1/upload-resume":
		return groupUpload
	case path == "/api/v1/billing/webhook":
		return groupWebhook
	default:
		return groupDefault
	}
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		checks, ok := svc.Status(c.Request.Context())
		if !ok {
			respond.Error(c, http.StatusServiceUnavailable, "unavailable", "dependency unreachable", checks)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "checks": checks})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
