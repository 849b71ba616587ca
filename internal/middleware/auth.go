package middleware

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tadeportfolio/portfolio/internal/session"
	"github.com/tadeportfolio/portfolio/internal/telemetry/tracing"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

const loginPath = "/login"

type contextKey string

const usernameContextKey contextKey = "auth-username"

type sessionTokenReader interface {
	Token(r *http.Request) (string, error)
}

type tokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthGate lets a request through only if its session holds a valid, unexpired token
type AuthGate struct {
	sessions sessionTokenReader
	tokens   tokenVerifier
}

func NewAuthGate(sessions sessionTokenReader, tokens tokenVerifier) *AuthGate {
	return &AuthGate{
		sessions: sessions,
		tokens:   tokens,
	}
}

// UsernameFromContext returns the username put in the request context by the auth gate
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok && username != ""
}

func (g *AuthGate) Check() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			token, err := g.sessions.Token(r)
			if err != nil {
				if !errors.Is(err, session.ErrNoToken) {
					log.Errorf("[auth gate] read session token => %s: %s", r.URL.Path, err)
				}
				g.reject(w, r)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			username, err := g.tokens.Verify(token)
			if err != nil {
				log.Tracef("[invalid token] [auth gate] unauthorized => %s: %s", r.URL.Path, err)
				g.reject(w, r)
				span.SetStatus(codes.Error, "invalid-token")
				return
			}

			span.SetAttributes(attribute.String("auth.username", username))
			span.SetStatus(codes.Ok, "ok")
			ctx = context.WithValue(ctx, usernameContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// reject sends browsers back to the login page, other clients get a bare 401
func (g *AuthGate) reject(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
