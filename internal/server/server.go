// Package server exposes a skill tree store over HTTP and WebSocket.
package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/agentic-research/skilltree/internal/source"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	Store *state.Store
	// Fetcher resolves tree sources for POST /api/tree/load.
	Fetcher source.Fetcher
	// DefaultSource is loaded when a load request names no source and no
	// tree has been loaded yet. It is always allowed.
	DefaultSource string
	// Sources limits the locations a load request may name. Anything else
	// is refused with 403.
	Sources        source.AllowList
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *Metrics
}

// Server serves one store.
type Server struct {
	store         *state.Store
	fetcher       source.Fetcher
	defaultSource string
	sources       source.AllowList
	origins       []string
	logger        *zap.Logger
	metrics       *Metrics
	upgrader      websocket.Upgrader
}

// New returns a server for opts.Store. Metrics default to a fresh
// "skilltree" namespace.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics("skilltree")
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		store:         opts.Store,
		fetcher:       opts.Fetcher,
		defaultSource: opts.DefaultSource,
		sources:       append(source.AllowList{opts.DefaultSource}, opts.Sources...),
		origins:       origins,
		logger:        logger,
		metrics:       metrics,
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      s.checkOrigin,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.logger, s.metrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", s.health)
	router.Handle("/metrics", s.metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/tree", func(r chi.Router) {
			r.Get("/", s.getTree)
			r.Post("/load", s.loadTree)
			r.Post("/reset", s.resetTree)
		})
		r.Route("/nodes/{nodeID}", func(r chi.Router) {
			r.Get("/", s.getNode)
			r.Post("/toggle", s.toggleNode)
			r.Post("/complete", s.completeNode)
		})
		r.Get("/ws", s.watch)
	})

	return router
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, origin)
}
