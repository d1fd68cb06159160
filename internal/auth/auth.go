// Package auth guards the console's operator actions with a shared password
// and cookie sessions.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	CookieName    = "lotterydesk_session"
	SessionExpiry = 12 * time.Hour
)

// Festive words for generated operator passwords
var passwordWords = []string{
	"lantern", "dragon", "ribbon", "jackpot", "firework",
	"golden", "lucky", "drum", "phoenix", "tiger",
	"envelope", "confetti", "spring", "peach", "orange",
	"banner", "crystal", "ticket", "prize", "sparkle",
}

// Auth holds the operator password and live sessions
type Auth struct {
	password string

	mu       sync.RWMutex
	sessions map[string]time.Time
	now      func() time.Time
}

// New creates an Auth that accepts password
func New(password string) *Auth {
	return &Auth{
		password: password,
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

// GeneratePassword returns three random words joined by dashes
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = passwordWords[randomInt(len(passwordWords))]
	}
	return strings.Join(words, "-")
}

// Login returns a new session token when password matches
func (a *Auth) Login(password string) (string, bool) {
	if a.password == "" || password != a.password {
		return "", false
	}

	token := generateToken()
	a.mu.Lock()
	a.sessions[token] = a.now().Add(SessionExpiry)
	a.mu.Unlock()
	return token, true
}

// Logout forgets token
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// ValidateSession reports whether token belongs to an unexpired session.
// Expired sessions are dropped.
func (a *Auth) ValidateSession(token string) bool {
	a.mu.RLock()
	expiry, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return false
	}

	if a.now().After(expiry) {
		a.Logout(token)
		return false
	}
	return true
}

// SessionCount returns the number of stored sessions, expired or not
func (a *Auth) SessionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// Authenticated reports whether r carries a valid session cookie
func (a *Auth) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return a.ValidateSession(cookie.Value)
}

// RequireOperator rejects requests without an operator session with 401
func (a *Auth) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHORIZED","error":"operator login required"}`))
	})
}

// SetSessionCookie stores token in the session cookie
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func generateToken() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
