package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"skills-backend/internal/accounts"
	"skills-backend/internal/billing"
	"skills-backend/internal/gate"
	"skills-backend/internal/llm"
	"skills-backend/internal/llm/openai"
	"skills-backend/internal/quota"
	"skills-backend/internal/resumes"
	"skills-backend/internal/services/health"
	"skills-backend/internal/shared/auth"
	"skills-backend/internal/shared/config"
	"skills-backend/internal/shared/server"
	"skills-backend/internal/shared/storage/db"
	"skills-backend/internal/shared/storage/object"
	localstore "skills-backend/internal/shared/storage/object/local"
	s3store "skills-backend/internal/shared/storage/object/s3"
	"skills-backend/internal/shared/telemetry"
	"skills-backend/internal/sweep"
)

const devJWTSecret = "dev-only-insecure-secret"

// App holds shared dependencies and the wired router.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Redis        *redis.Client
	Store        object.ObjectStore
	Policy       quota.Policy
	AccountsRepo accounts.Repo
	ResumesRepo  resumes.Repo
	Gate         *gate.Gate
	Sweeper      *sweep.Sweeper

	AccountsService *accounts.Service
	ResumesService  *resumes.Service
	Reconciler      *billing.Reconciler

	AccountsHandler *accounts.Handler
	ResumesHandler  *resumes.Handler
	BillingHandler  *billing.Handler
}

// Build prepares dependencies and routes. Dev-like environments fall back to
// in-memory repositories when no database is reachable.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.SetLevel(cfg.LogLevel)

	app := &App{
		Config: cfg,
		Policy: quota.NewPolicy(cfg.QuotaMonthlyLimit, cfg.QuotaWindow),
	}

	var err error
	if app.DB, err = buildDB(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Redis, err = buildRedis(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Store, err = buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	checks := health.NewService()
	if app.DB != nil {
		checks.Register("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		checks.Register("redis", func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() })
	}
	app.Router = server.NewRouter(server.Deps{
		Config:   cfg,
		Verifier: app.AccountsService.Tokens,
		Public:   []server.PublicRoutes{app.AccountsHandler, app.BillingHandler},
		Private:  []server.Routes{app.AccountsHandler, app.ResumesHandler, app.BillingHandler},
		Health:   checks,
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	client, err := billing.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.redis.memory", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildExtractor(cfg config.Config) (llm.SkillExtractor, error) {
	switch cfg.LLMProvider {
	case "static":
		return llm.StaticExtractor{}, nil
	case "openai", "":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
		if err != nil {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.llm.static", map[string]any{"error": err.Error()})
				return llm.StaticExtractor{}, nil
			}
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func buildIssuer(cfg config.Config) (*auth.Issuer, error) {
	secret := cfg.JWTSecret
	if strings.TrimSpace(secret) == "" && isDevLike(cfg.Env) {
		telemetry.Warn("bootstrap.jwt.dev_secret", nil)
		secret = devJWTSecret
	}
	return auth.NewIssuer(secret, cfg.TokenTTL)
}

func buildProvider(cfg config.Config) billing.Provider {
	client, err := billing.NewClient(cfg.PaddleAPIBaseURL, cfg.PaddleAPIKey, cfg.PaddlePriceID, cfg.PaddleTimeout)
	if err != nil {
		telemetry.Warn("bootstrap.billing.disabled", map[string]any{"error": err.Error()})
		return nil
	}
	return client
}

func buildServices(app *App) error {
	cfg := app.Config
	if app.DB != nil {
		app.AccountsRepo = &accounts.PGRepo{DB: app.DB}
		app.ResumesRepo = &resumes.PGRepo{DB: app.DB}
	} else {
		app.AccountsRepo = accounts.NewMemoryRepo()
		app.ResumesRepo = resumes.NewMemoryRepo()
	}

	issuer, err := buildIssuer(cfg)
	if err != nil {
		return err
	}
	extractor, err := buildExtractor(cfg)
	if err != nil {
		return err
	}

	var ledger billing.Ledger = billing.NewMemoryLedger(billing.DefaultLedgerTTL)
	if app.Redis != nil {
		ledger = billing.NewRedisLedger(app.Redis, billing.DefaultLedgerTTL)
	}

	app.Gate = gate.New(app.AccountsRepo, app.Policy)
	app.Sweeper = sweep.New(app.AccountsRepo)
	app.AccountsService = accounts.NewService(app.AccountsRepo, accounts.LogMailer{RevealTokens: isDevLike(cfg.Env)}, issuer, app.Policy, cfg.PublicBaseURL)
	app.ResumesService = resumes.NewService(app.ResumesRepo, app.Gate, extractor, app.Store, app.Policy, cfg.ExtractionTimeout)
	app.Reconciler = billing.NewReconciler(app.AccountsRepo, ledger)

	verifier := billing.Verifier{Secret: cfg.PaddleWebhookSecret, Tolerance: cfg.PaddleWebhookTolerance}
	if verifier.Secret == "" {
		telemetry.Warn("bootstrap.billing.webhook_unconfigured", nil)
	}

	app.AccountsHandler = accounts.NewHandler(app.AccountsService)
	app.ResumesHandler = resumes.NewHandler(app.ResumesService, cfg.MaxUploadBytes)
	app.BillingHandler = billing.NewHandler(verifier, app.Reconciler, buildProvider(cfg), app.AccountsRepo)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
