package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestTimeout bounds every API request; /ws is exempt
const requestTimeout = 60 * time.Second

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.log != nil && h.log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	// Display screens
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}
	if h.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", NewStaticServer(h.Static)))
		r.Get("/display", h.handleDisplay)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/display", http.StatusFound)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// Public reads
		r.Get("/state", h.handleGetState)
		r.Get("/chat", h.handleGetChat)
		r.Get("/history", h.handleHistory)
		r.Get("/display-qr", h.handleDisplayQR)
		r.Get("/health", h.handleHealth)

		// Operator session
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/session", h.handleSession)

		// Operator only
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireOperator)

			// Drawing
			r.Post("/reload", h.handleReload)
			r.Post("/draw/start", h.handleStartDraw)
			r.Post("/draw/stop", h.handleStopDraw)
			r.Post("/reset", h.handleReset)
			r.Post("/cancel-win", h.handleCancelWin)

			// Voice chat
			r.Post("/chat", h.handleSay)
			r.Delete("/chat", h.handleClearChat)

			// Participants
			r.Get("/participants", h.handleGetParticipants)
			r.Post("/participants", h.handleCreateParticipant)
			r.Post("/participants/import", h.handleImportParticipants)
			r.Post("/participants/delete", h.handleDeleteParticipants)
			r.Put("/participants/{id}", h.handleUpdateParticipant)
			r.Delete("/participants/{id}", h.handleDeleteParticipant)

			// Prizes
			r.Get("/prizes", h.handleGetPrizes)
			r.Post("/prizes", h.handleCreatePrize)
			r.Get("/prizes/next", h.handleNextPrize)
			r.Put("/prizes/{id}", h.handleUpdatePrize)
			r.Delete("/prizes/{id}", h.handleDeletePrize)

			// Stats & Records
			r.Get("/stats", h.handleGetStats)
			r.Get("/records", h.handleGetRecords)
			r.Get("/system-info", h.handleSystemInfo)

			// Settings
			r.Get("/settings", h.handleGetSettings)
			r.Put("/settings", h.handleUpdateSettings)
			r.Post("/reset-journal", h.handleResetJournal)
		})
	})

	return r
}
