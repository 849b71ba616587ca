package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tadeportfolio/portfolio/internal/middleware"
	"github.com/tadeportfolio/portfolio/internal/telemetry/metrics"
	"github.com/tadeportfolio/portfolio/internal/telemetry/tracing"
	"github.com/tadeportfolio/portfolio/pkg"
)

const (
	LoginPagePath = "/login"
	AdminPagePath = "/admina.html"

	loginFailedMessage = "invalid username or password"
)

type loginService interface {
	Login(ctx context.Context, creds Credentials) (string, error)
}

type sessionHolder interface {
	SetToken(w http.ResponseWriter, r *http.Request, token string) error
	ClearToken(w http.ResponseWriter, r *http.Request) error
}

type Handler struct {
	service        loginService
	sessions       sessionHolder
	metricsManager *metrics.Manager
}

func NewHandler(
	service loginService,
	sessions sessionHolder,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		service:        service,
		sessions:       sessions,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
	trustedProxies pkg.TrustedProxies,
) {
	loginHandler := middleware.RateLimit(
		rateLimiter,
		"login",
		loginAllowedPerMin,
		trustedProxies,
		handler.metricsManager,
	)(http.HandlerFunc(handler.handleLogin))

	mainRouter.Handle("/loginUser", loginHandler).Methods("POST").Name("login-user")
	mainRouter.HandleFunc("/logout", handler.handleLogout).Methods("POST").Name("logout")
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	var creds Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			span.SetStatus(codes.Error, "bad-json")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			span.SetStatus(codes.Error, "bad-form")
			return
		}
		creds = Credentials{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}
	creds.Username = strings.TrimSpace(creds.Username)
	span.SetAttributes(attribute.String("login.username", creds.Username))

	token, err := handler.service.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Tracef("failed login attempt for user: %s", creds.Username)
			handler.countLogin("invalid")
			http.Error(w, loginFailedMessage, http.StatusUnauthorized)
			span.SetStatus(codes.Error, "invalid-credentials")
			return
		}
		log.Errorf("login failed for user %s: %s", creds.Username, err)
		handler.countLogin("error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "login-error")
		span.RecordError(err)
		return
	}

	if err := handler.sessions.SetToken(w, r, token); err != nil {
		log.Errorf("login failed, store token in session: %s", err)
		handler.countLogin("error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "session-error")
		span.RecordError(err)
		return
	}

	handler.countLogin("ok")
	log.Debugf("new login success for user: %s", creds.Username)
	span.SetStatus(codes.Ok, "ok")
	http.Redirect(w, r, AdminPagePath, http.StatusFound)
}

// handleLogout only removes the token from the session, the token itself is valid until it expires
func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.logout")
	defer span.End()

	if err := handler.sessions.ClearToken(w, r); err != nil {
		log.Errorf("logout, clear session token: %s", err)
		span.RecordError(err)
	}

	http.Redirect(w, r, LoginPagePath, http.StatusFound)
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager == nil {
		return
	}
	handler.metricsManager.CounterLogins.With(prometheus.Labels{"result": result}).Inc()
}
