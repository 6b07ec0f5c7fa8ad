package main

import (
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionName    = "tagctl_session"
	sessionUserKey = "username"
)

// adminCreds holds the single operator account the admin routes accept.
// tagctl has no user model of its own — one username/password pair,
// supplied at startup via -admin-user/-admin-pass, gates every guarded
// route.
type adminCreds struct {
	username     string
	passwordHash string
}

func (a *adminCreds) check(username, password string) bool {
	if a == nil || username != a.username {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
}

// sessionStore wraps a gorilla CookieStore keyed by an in-memory secret
// generated fresh at each tagctl startup — sessions don't need to survive
// a restart, so there's nothing to persist.
type sessionStore struct {
	store *sessions.CookieStore
}

func newSessionStore(secret []byte) *sessionStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   8 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	return &sessionStore{store: store}
}

func (s *sessionStore) get(r *http.Request) *sessions.Session {
	session, _ := s.store.Get(r, sessionName)
	return session
}

func (s *sessionStore) loggedIn(r *http.Request) bool {
	session := s.get(r)
	user, ok := session.Values[sessionUserKey].(string)
	return ok && user != ""
}

func (s *sessionStore) login(w http.ResponseWriter, r *http.Request, username string) error {
	session := s.get(r)
	session.Values[sessionUserKey] = username
	return session.Save(r, w)
}

func (s *sessionStore) logout(w http.ResponseWriter, r *http.Request) error {
	session := s.get(r)
	delete(session.Values, sessionUserKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// requireAdmin gates a handler behind both a configured admin account and
// an active session. If no admin account was configured at startup, the
// guarded routes are unreachable rather than silently open.
func (s *server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.admin == nil {
			http.Error(w, "admin routes disabled", http.StatusNotFound)
			return
		}
		if !s.sessions.loggedIn(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
