package handlers

import (
	"net/http"

	"github.com/abrezinsky/lotterydesk/internal/auth"
)

// handleLogin starts an operator session
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.log.Warn("Operator login failed", "remote_addr", r.RemoteAddr)
		h.respondError(w, r, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, token)
	respondOK(w, SessionResponse{Authenticated: true})
}

// handleLogout ends the caller's session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	respondOK(w, SessionResponse{Authenticated: false})
}

// handleSession reports whether the caller holds an operator session
func (h *Handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	respondOK(w, SessionResponse{Authenticated: h.Auth.Authenticated(r)})
}
