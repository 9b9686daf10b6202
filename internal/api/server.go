// Package api provides the HTTP intent API over the tag store.
//
// Mutating endpoints dispatch a request transition and answer 202 Accepted;
// the outcome arrives later as a completion or error transition on the
// event stream.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/search"
	"github.com/upnorway/sanity-plugin-media/internal/sse"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
	"github.com/upnorway/sanity-plugin-media/internal/validation"
)

// Documents is the part of the backing store the API reads directly.
type Documents interface {
	Get(ctx context.Context, docID string) (docstore.Document, error)
	Listen(ctx context.Context, q docstore.Query) (<-chan docstore.MutationEvent, error)
	Ping(ctx context.Context) error
}

// Options configures optional server behavior.
type Options struct {
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
	// Limiter rate limits intent and listen requests per client. Nil disables it.
	Limiter *RateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	docs       Documents
	store      *tagstore.Store
	index      *search.TagIndex
	sseManager *sse.Manager
	sseHandler *sse.Handler
	metrics    *metrics.Metrics
	validator  *validation.Validator
	limiter    *RateLimiter
	upgrader   websocket.Upgrader
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(docs Documents, store *tagstore.Store, index *search.TagIndex, sseManager *sse.Manager, m *metrics.Metrics, logger *slog.Logger, opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		docs:       docs,
		store:      store,
		index:      index,
		sseManager: sseManager,
		metrics:    m,
		validator:  validation.New(),
		limiter:    opts.Limiter,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}

	s.setupMiddleware(origins)

	s.api = humachi.New(s.router, huma.DefaultConfig("Media Tags API", "1.0.0"))
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerTagRoutes()
	s.registerReconcileRoutes()
	s.registerAssetRoutes()

	// Streaming endpoints stay on chi, outside huma's request/response model.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/tags/stream", s.sseHandler.ServeHTTP)
	}

	listen := http.Handler(http.HandlerFunc(s.handleDocumentListen))
	if s.limiter != nil {
		listen = RateLimitMiddleware(s.limiter, s.logger)(listen)
	}
	s.router.Method(http.MethodGet, "/api/v1/documents/listen", listen)

	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
}

// intentMiddlewares is attached to every operation that dispatches a request
// transition.
func (s *Server) intentMiddlewares() huma.Middlewares {
	return huma.Middlewares{s.rateLimitIntents}
}

// IntentResponse acknowledges a dispatched transition.
type IntentResponse struct {
	Action string `json:"action" doc:"Transition dispatched to the tag store"`
}

// IntentOutput wraps the intent acknowledgement for Huma.
type IntentOutput struct {
	Body IntentResponse
}

// dispatch sends a request transition to the tag store.
func (s *Server) dispatch(a tagstore.Action) *IntentOutput {
	s.store.Dispatch(a)
	return &IntentOutput{Body: IntentResponse{Action: string(a.Type())}}
}

// originChecker allows websocket upgrades from origins the CORS policy
// accepts. Requests without an Origin header are not browsers and pass.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
