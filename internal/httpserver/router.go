package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatspark/internal/config"
	"chatspark/internal/domain"
	"chatspark/internal/security"
	"chatspark/internal/service"
	"chatspark/internal/ws"
)

// Deps bundles the constructed services the router wires to routes. The
// composition root in main builds them; the router only maps URLs.
type Deps struct {
	Config  *config.Config
	Tokens  *security.TokenService
	Users   domain.UserRepository
	UserSvc *service.UserService
	ConvSvc *service.ConversationService
	MsgSvc  *service.MessageService
	Hub     *ws.Hub
	QueueOK func() bool
	Log     zerolog.Logger
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if d.QueueOK != nil && !d.QueueOK() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status})
	})

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Tokens, d.Users))

		r.Route("/users", func(r chi.Router) {
			r.Get("/{userID}", handleGetUser(d.UserSvc))
			r.Get("/{userID}/online", handleGetUserOnline(d.UserSvc))
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", handleListConversations(d.ConvSvc))
			r.Get("/{conversationID}", handleGetConversation(d.ConvSvc))
			r.Post("/{conversationID}/read", handleMarkConversationRead(d.MsgSvc))
			r.Get("/{conversationID}/messages", handleListMessages(d.MsgSvc))
		})

		r.Post("/messages", handleSendMessage(d.MsgSvc, d.Hub))
		r.Get("/messages/search", handleSearchMessages(d.MsgSvc))
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(d.Hub, d.Tokens, d.Users, d.MsgSvc, d.Config.CORSOrigins, d.Log))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrSelfMessage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
