package session

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"
)

const (
	CookieName   = "portfolio_session"
	sessionIDKey = "sid"
)

var errSessionIDGeneration = errors.New("failed to generate session id")

// Holder maps requests to sessions. The session id lives in a signed and encrypted
// cookie, while the token is kept server side in the Backend.
type Holder struct {
	backend Backend
	store   *sessions.CookieStore
}

type HolderParams struct {
	Secret string
	MaxAge time.Duration
	Secure bool
}

func NewHolder(backend Backend, params HolderParams) *Holder {
	hashKey := sha256.Sum256([]byte("auth:" + params.Secret))
	blockKey := sha256.Sum256([]byte("enc:" + params.Secret))

	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(params.MaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   params.Secure,
	}
	store.MaxAge(store.Options.MaxAge)

	return &Holder{
		backend: backend,
		store:   store,
	}
}

// ID returns the session id carried by the request cookie, if any
func (h *Holder) ID(r *http.Request) (string, bool) {
	s, err := h.store.Get(r, CookieName)
	if err != nil {
		log.Tracef("session cookie rejected: %s", err)
		return "", false
	}
	id, ok := s.Values[sessionIDKey].(string)
	return id, ok && id != ""
}

func (h *Holder) Token(r *http.Request) (string, error) {
	id, ok := h.ID(r)
	if !ok {
		return "", ErrNoToken
	}
	return h.backend.Get(r.Context(), id)
}

// SetToken stores the token under a fresh session id. An id carried over from an earlier
// cookie is dropped together with its stored token, so a planted session can't be logged into.
func (h *Holder) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	s, err := h.store.Get(r, CookieName)
	if err != nil {
		// bad or stale cookie, s is a fresh session
		log.Debugf("session cookie rejected, starting new session: %s", err)
	}

	if previousID, _ := s.Values[sessionIDKey].(string); previousID != "" {
		if err := h.backend.Clear(r.Context(), previousID); err != nil {
			log.Warnf("clear previous session: %s", err)
		}
	}

	id := newSessionID()
	if id == "" {
		return errSessionIDGeneration
	}
	s.Values[sessionIDKey] = id

	if err := s.Save(r, w); err != nil {
		return err
	}

	return h.backend.Set(r.Context(), id, token)
}

// ClearToken removes the token from the requesting session, if there is one
func (h *Holder) ClearToken(_ http.ResponseWriter, r *http.Request) error {
	id, ok := h.ID(r)
	if !ok {
		return nil
	}
	return h.backend.Clear(r.Context(), id)
}

func newSessionID() string {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(key)
}
