package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/battlewithbytes/lxd-console/internal/config"
)

const (
	sessionCookieName = "lxd-console-session"
	sessionMaxAge     = 24 * time.Hour

	// A client is locked out for loginLockout after maxLoginFailures
	// consecutive wrong passwords.
	maxLoginFailures = 5
	loginLockout     = time.Minute
)

type loginFailures struct {
	count int
	last  time.Time
}

// sessionStore holds login sessions and failed login counts in memory.
// Sessions do not survive a restart.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	failures map[string]*loginFailures
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]time.Time),
		failures: make(map[string]*loginFailures),
		now:      time.Now,
	}
}

func (st *sessionStore) create() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	for t, exp := range st.sessions {
		if now.After(exp) {
			delete(st.sessions, t)
		}
	}
	st.sessions[token] = now.Add(sessionMaxAge)
	return token, nil
}

// valid reports whether token names a live session. Expired sessions are
// dropped on sight.
func (st *sessionStore) valid(token string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	exp, ok := st.sessions[token]
	if ok && st.now().After(exp) {
		delete(st.sessions, token)
		return false
	}
	return ok
}

func (st *sessionStore) revoke(token string) {
	st.mu.Lock()
	delete(st.sessions, token)
	st.mu.Unlock()
}

func (st *sessionStore) lockedOut(client string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	f, ok := st.failures[client]
	if !ok {
		return false
	}
	if st.now().Sub(f.last) > loginLockout {
		delete(st.failures, client)
		return false
	}
	return f.count >= maxLoginFailures
}

func (st *sessionStore) recordFailure(client string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	f, ok := st.failures[client]
	if !ok {
		f = &loginFailures{}
		st.failures[client] = f
	}
	f.count++
	f.last = st.now()
}

func (st *sessionStore) clearFailures(client string) {
	st.mu.Lock()
	delete(st.failures, client)
	st.mu.Unlock()
}

// clientAddr is the remote IP without the port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) hasSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}
	return s.sessions.valid(cookie.Value)
}

// withAuth wraps a handler to require authentication (if auth is enabled).
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth.Mode == config.AuthModeNone {
			next(w, r)
			return
		}

		if _, err := r.Cookie(sessionCookieName); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !s.hasSession(r) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	client := clientAddr(r)
	if s.sessions.lockedOut(client) {
		writeError(w, http.StatusTooManyRequests, "too many failed logins, try again in a minute")
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordHash), []byte(body.Password)); err != nil {
		s.sessions.recordFailure(client)
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	s.sessions.clearFailures(client)

	token, err := s.sessions.create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.revoke(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": s.hasSession(r),
		"auth_required": s.cfg.Auth.Mode == config.AuthModePassword,
	})
}
