package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/noah-isme/backend-confero/internal/app"
	"github.com/noah-isme/backend-confero/internal/audit"
	"github.com/noah-isme/backend-confero/internal/auth"
	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/conference"
	"github.com/noah-isme/backend-confero/internal/config"
	"github.com/noah-isme/backend-confero/internal/events"
	"github.com/noah-isme/backend-confero/internal/feetype"
	"github.com/noah-isme/backend-confero/internal/health"
	httpmw "github.com/noah-isme/backend-confero/internal/http/middleware"
	"github.com/noah-isme/backend-confero/internal/obs"
	"github.com/noah-isme/backend-confero/internal/ratelimit"
	"github.com/noah-isme/backend-confero/internal/registration"
	"github.com/noah-isme/backend-confero/internal/reminder"
	"github.com/noah-isme/backend-confero/internal/resilience"
	"github.com/noah-isme/backend-confero/internal/security"
	"github.com/noah-isme/backend-confero/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "confero")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := cfg.TracingEnable
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "confero-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := app.NewDatabase(ctx, cfg, "confero-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	migrationsDir := envOrDefault("DB_MIGRATIONS_DIR", "db/migrations")
	if err := app.Migrate(cfg.DatabaseURL, migrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskRedis, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(taskRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New(validator.WithRequiredStructEnabled())

	authService, err := auth.NewService(auth.Config{
		Store:          auth.Repo{DB: pool},
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Svc: authService, Validate: validate}
	authMiddleware := auth.Middleware{Service: authService}

	feeRepo := feetype.Repo{DB: pool}
	feeService := &feetype.Service{Store: feeRepo}
	feeHandler := &feetype.Handler{Svc: feeService, Validate: validate}

	confService := &conference.Service{
		Store:    conference.Repo{DB: pool},
		FeeTypes: feeRepo,
		Cache:    conference.NewCache(redisClient, cfg.QuoteCacheTTL),
	}
	confHandler := &conference.Handler{Svc: confService, Validate: validate}
	feeService.Quotes = confService

	notifiers := []events.Notifier{}
	if cfg.WebhookEnabled {
		notifiers = append(notifiers, &events.WebhookNotifier{
			URL:    cfg.WebhookURL,
			Secret: cfg.WebhookSecret,
			Doer: resilience.HTTPClient{
				Client:      events.HTTPClient(5000, false),
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("webhook-delivery").WithLogger(logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
			},
			Enabled: true,
		})
	}
	eventBus := &events.Bus{
		Store:     events.Store{DB: pool},
		Notifiers: notifiers,
	}

	reminderScheduler := &reminder.Scheduler{
		Client: taskClient,
		Delay:  cfg.ReminderDelay,
		Queue:  cfg.ReminderQueue,
	}

	regService := &registration.Service{
		Tx:        registration.PgxRunner{Pool: pool},
		Events:    eventBus,
		Reminders: reminderScheduler,
		Logger:    logger,
	}
	regHandler := &registration.Handler{Svc: regService, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	regLimiter, err := app.NewRateLimiter(redisClient, cfg.RegistrationRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise registration rate limiter")
	}
	regLimit := limiterstdlib.NewMiddleware(regLimiter)

	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "confero:login"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return common.ClientIP(r) },
			Window: time.Minute,
			Max:    10,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("login rate limit check failed")
		},
	}

	tenantResolver := tenant.NewResolver(cfg.TenantHeader, cfg.RootDomain, cfg.DefaultTenant)

	auditService := &audit.Service{
		Store:   audit.Repo{DB: pool},
		Enabled: envBool("AUDIT_ENABLED", true),
	}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("record audit entry")
		},
	}
	auditHandler := audit.Handler{Store: audit.Repo{DB: pool}}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.TenantHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(tenantResolver.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("OBS_PPROF_USER", "")
		pass := envOrDefault("OBS_PPROF_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.With(httpmw.RequireTenant).Get("/conferences/{conferenceID}/fees", confHandler.QuoteFees)

		v.Group(func(g chi.Router) {
			g.Use(httpmw.RequireTenant)
			g.Use(regLimit.Handler)
			g.Use(idem.Middleware)
			g.Post("/conferences/{conferenceID}/registrations", regHandler.Register)
		})

		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)

			admin.Get("/conferences/{conferenceID}/pricing", confHandler.GetPricing)
			admin.Get("/conferences/{conferenceID}/fee-types", feeHandler.List)
			admin.Post("/fee-types/preview", feeHandler.Preview)
			admin.Get("/conferences/{conferenceID}/registrations", regHandler.List)
			admin.Get("/registrations/{registrationID}", regHandler.Get)
			admin.Get("/audit-logs", auditHandler.List)

			admin.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireRole(auth.RoleAdmin))
				g.With(auditRecorder.Middleware(audit.HTTPConfig{
					ResourceType:    "conference.pricing",
					ResourceIDParam: "conferenceID",
				})).Put("/conferences/{conferenceID}/pricing", confHandler.UpdatePricing)
				g.With(auditRecorder.Middleware(audit.HTTPConfig{
					ResourceType:    "conference.fee-types",
					ResourceIDParam: "conferenceID",
				})).Post("/conferences/{conferenceID}/fee-types", feeHandler.Create)
				g.With(auditRecorder.Middleware(audit.HTTPConfig{
					ResourceType:    "fee-types",
					ResourceIDParam: "feeTypeID",
				})).Put("/fee-types/{feeTypeID}", feeHandler.Update)
				g.With(auditRecorder.Middleware(audit.HTTPConfig{
					ResourceType:    "fee-types",
					ResourceIDParam: "feeTypeID",
				})).Delete("/fee-types/{feeTypeID}", feeHandler.Delete)
				g.With(auditRecorder.Middleware(audit.HTTPConfig{
					ResourceType:    "registrations",
					ResourceIDParam: "registrationID",
				})).Post("/registrations/{registrationID}/cancel", regHandler.Cancel)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
