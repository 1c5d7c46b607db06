// Package server exposes the gateway over HTTP: a small JSON API for the
// shell UI and the websocket endpoint the requester agent attaches to.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ksutools/portalgate/internal/app"
	"github.com/ksutools/portalgate/internal/logging"
)

// Config holds the server options.
type Config struct {
	ListenAddr string
	Logger     logging.Logger
}

// Server is the HTTP + WebSocket surface of the gateway.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server over an already-wired application.
func NewServer(cfg Config, a *app.Application) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:    cfg,
		app:    a,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The agent connects from localhost; the API is local-only.
				return true
			},
		},
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/api/login", s.optionsHandler("POST"))
	r.Options("/api/logout", s.optionsHandler("POST"))
	r.Options("/api/session/restore", s.optionsHandler("POST"))
	r.Options("/api/session", s.optionsHandler("GET"))
	r.Options("/api/profile", s.optionsHandler("GET"))
	r.Options("/api/grades", s.optionsHandler("GET"))
	r.Options("/api/calendar", s.optionsHandler("GET"))
	r.Options("/api/proxy", s.optionsHandler("POST"))

	// Session lifecycle
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	r.Post("/api/session/restore", s.handleRestore)
	r.Get("/api/session", s.handleSession)

	// Domain data
	r.Get("/api/profile", s.handleProfile)
	r.Get("/api/grades", s.handleGrades)
	r.Get("/api/calendar", s.handleCalendar)

	// Raw request passthrough
	r.Post("/api/proxy", s.handleProxy)

	// Requester agent attachment
	r.Get("/bridge", s.handleBridge)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the bridge connection is long-lived
	}
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("bridge upgrade failed",
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	s.app.Hub.Attach(conn)
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
