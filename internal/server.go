package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"

	"github.com/tadeportfolio/portfolio/internal/auth"
	"github.com/tadeportfolio/portfolio/internal/config"
	"github.com/tadeportfolio/portfolio/internal/db"
	"github.com/tadeportfolio/portfolio/internal/middleware"
	"github.com/tadeportfolio/portfolio/internal/pages"
	"github.com/tadeportfolio/portfolio/internal/session"
	"github.com/tadeportfolio/portfolio/internal/submissions"
	"github.com/tadeportfolio/portfolio/internal/telemetry/metrics"
	"github.com/tadeportfolio/portfolio/internal/telemetry/tracing"
	"github.com/tadeportfolio/portfolio/pkg"
)

const (
	serviceName = "portfolio-service"

	// contact form posts are small, a message is at most 5000 characters
	maxRequestBodyBytes = 64 << 10
)

type credentialStore interface {
	Get(ctx context.Context, username string) (*auth.User, error)
}

type submissionStore interface {
	Add(ctx context.Context, submission *submissions.Submission) error
	Get(ctx context.Context, id int) (*submissions.Submission, error)
	List(ctx context.Context) ([]submissions.Submission, error)
	Delete(ctx context.Context, id int) (bool, error)
}

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	users          credentialStore
	submissions    submissionStore
	rateLimiter    middleware.RequestRateLimiter
	trustedProxies pkg.TrustedProxies
	tokenIssuer    *auth.TokenIssuer
	sessionHolder  *session.Holder

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	Secrets     *config.Secrets
	VersionInfo string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	secrets := params.Secrets

	trustedProxies, err := pkg.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	tokenSecret, err := signingSecret("PORTFOLIO_TOKEN_SECRET", secrets.TokenSecret, cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	sessionSecret, err := signingSecret("PORTFOLIO_SESSION_SECRET", secrets.SessionSecret, cfg.IsProduction())
	if err != nil {
		return nil, err
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(secrets.HoneycombEnabled, serviceName)
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     secrets.PostgresPassword,
		TracingEnabled: secrets.HoneycombEnabled,
	})
	if err != nil {
		otelShutdown()
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}
	if err := db.EnsureSchema(ctx, dbPool); err != nil {
		dbPool.Close()
		otelShutdown()
		return nil, err
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("portfolio", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	s := &Server{
		versionInfo:    params.VersionInfo,
		config:         cfg,
		dbPool:         dbPool,
		users:          auth.NewUsersRepo(dbPool),
		submissions:    submissions.NewRepo(dbPool),
		trustedProxies: trustedProxies,
		tokenIssuer:    auth.NewTokenIssuer(tokenSecret, cfg.TokenTTL()),
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	var sessionBackend session.Backend
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: secrets.RedisPassword,
			DB:       0, // use default DB
		})
		s.redisClient.AddHook(redisotel.NewTracingHook())

		rdbStatus := s.redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}

		sessionBackend = session.NewRedisBackend(s.redisClient, cfg.SessionMaxAge())
		s.rateLimiter = redis_rate.NewLimiter(s.redisClient)
	case config.SessionBackendMemory:
		log.Warnln("using in-memory sessions and rate limiting, not for multi instance setups")
		sessionBackend = session.NewMemoryBackend(cfg.SessionMaxAge())
		s.rateLimiter = middleware.NewMemoryRateLimiter()
	default:
		s.closeResources()
		return nil, fmt.Errorf("unknown session backend: %s", cfg.SessionBackend)
	}

	s.sessionHolder = session.NewHolder(sessionBackend, session.HolderParams{
		Secret: sessionSecret,
		MaxAge: cfg.SessionMaxAge(),
		Secure: cfg.SecureCookies,
	})

	return s, nil
}

// signingSecret outside production falls back to a random key, so nothing signed survives a restart
func signingSecret(envName, value string, production bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if production {
		return "", fmt.Errorf("%s must be set in production", envName)
	}

	log.Warnf("%s not set, using a random per-process key", envName)
	secret, err := pkg.GenerateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", envName, err)
	}
	return secret, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	pagesHandler, err := pages.NewHandler(s.versionInfo)
	if err != nil {
		return nil, fmt.Errorf("pages handler: %w", err)
	}
	pagesHandler.SetupRoutes(r)

	authHandler := auth.NewHandler(
		auth.NewService(s.users, s.tokenIssuer),
		s.sessionHolder,
		s.metricsManager,
	)
	authHandler.SetupRoutes(r, s.rateLimiter, s.config.LoginRateLimitAllowedPerMin, s.trustedProxies)

	authGate := middleware.NewAuthGate(s.sessionHolder, s.tokenIssuer)
	submissionsHandler := submissions.NewHandler(s.submissions, s.metricsManager)
	submissionsHandler.SetupRoutes(r, authGate.Check())

	// all the rest - unhandled paths
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.LimitAndDrainRequest(maxRequestBodyBytes))

	return r, nil
}

// handler is the full main handler, security headers also cover 404 and 405 answers,
// which mux serves without running the router middlewares
func (s *Server) handler() (http.Handler, error) {
	router, err := s.routerSetup()
	if err != nil {
		return nil, err
	}
	return middleware.SecurityHeaders()(router), nil
}

func (s *Server) Serve(host string, port int) error {
	handler, err := s.handler()
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:           handler,
		Addr:              ipAndPort,
		WriteTimeout:      time.Minute,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", metrics.Handler(s.promRegistry))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
	return nil
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var err error
	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown http server: %w", shutdownErr))
		}
		log.Warnln("server shut down")
	}
	if s.metricsHttpServer != nil {
		if shutdownErr := s.metricsHttpServer.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown metrics http server: %w", shutdownErr))
		}
		log.Warnln("metrics server shut down")
	}

	err = multierr.Append(err, s.closeResources())
	for _, e := range multierr.Errors(err) {
		log.Errorf(" >>> graceful shutdown: %s", e)
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) closeResources() error {
	var err error
	if s.otelShutdown != nil {
		s.otelShutdown()
		log.Trace("otel shut down ...")
	}

	if s.redisClient != nil {
		if closeErr := s.redisClient.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close redis client: %w", closeErr))
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	return err
}
