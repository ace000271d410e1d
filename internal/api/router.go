package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/taskboard-be/internal/api/handlers"
	"github.com/isdelr/taskboard-be/internal/auth"
	"github.com/isdelr/taskboard-be/internal/services"
	"github.com/isdelr/taskboard-be/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// tokenQueryParam carries a bearer token on websocket upgrades.
const tokenQueryParam = "token"

// Dependencies groups everything the router wires into handlers.
type Dependencies struct {
	Issuer         *auth.TokenIssuer
	UserService    services.UserServiceProvider
	TaskService    services.TaskServiceProvider
	EventService   services.EventServiceProvider
	Hub            *websocket.Hub
	DB             handlers.Pinger
	Stats          handlers.HostStatsSource
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.UserService, deps.Issuer)
	taskHandler := handlers.NewTaskHandler(deps.TaskService)
	eventHandler := handlers.NewEventHandler(deps.EventService)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Stats)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)

	// Plain request/response routes share the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(deps.RequestTimeout))

		r.Post("/register", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Get("/health", healthHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Gate(deps.Issuer))

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.GetAll)
				r.Post("/", taskHandler.Create)
				r.Put("/{id}", taskHandler.Update)
			})
			r.Get("/events", eventHandler.GetRecent)
		})
	})

	// WebSocket connection endpoint
	r.With(auth.Gate(auth.QueryFallback{Issuer: deps.Issuer, Param: tokenQueryParam})).Get("/ws", wsHandler.Serve)

	return r
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			l := zerolog.Ctx(r.Context())
			l.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("url", redactedURL(r.URL)).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request handled")
}

// redactedURL renders u for logging with any query token masked.
func redactedURL(u *url.URL) string {
	q := u.Query()
	if !q.Has(tokenQueryParam) {
		return u.String()
	}
	q.Set(tokenQueryParam, "REDACTED")
	clean := *u
	clean.RawQuery = q.Encode()
	return clean.String()
}
