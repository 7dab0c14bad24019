package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/filmpulse/filmpulse/internal/config"
	"github.com/filmpulse/filmpulse/internal/metrics"
	"github.com/filmpulse/filmpulse/internal/rating"
	"github.com/filmpulse/filmpulse/internal/recommend"
	"github.com/filmpulse/filmpulse/internal/repository"
	"github.com/filmpulse/filmpulse/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg        config.Config
	store      *store.Store
	repo       *repository.Repository
	ratings    *rating.Service
	recommends *recommend.Service
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	router     chi.Router
	httpSrv    *http.Server
}

// Params bundles the server's dependencies.
type Params struct {
	Config     config.Config
	Store      *store.Store
	Repo       *repository.Repository
	Ratings    *rating.Service
	Recommends *recommend.Service
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// New constructs the HTTP server with base middleware and routes.
func New(p Params) *Server {
	s := &Server{
		cfg:        p.Config,
		store:      p.Store,
		repo:       p.Repo,
		ratings:    p.Ratings,
		recommends: p.Recommends,
		metrics:    p.Metrics,
		logger:     p.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	s.router = r
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Post("/", s.handleCreateMovie)
		r.Route("/{movieID}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Get("/rating", s.handleGetAggregate)
			r.Get("/ratings", s.handleListMovieRatings)
			r.Post("/ratings", s.handleSubmitRating)
			r.Delete("/ratings", s.handleDeleteRating)
			r.Get("/ratings/{userID}", s.handleGetRating)
		})
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/{userID}/ratings", s.handleListUserRatings)
	})

	s.router.Route("/genres", func(r chi.Router) {
		r.Get("/", s.handleListGenres)
		r.Post("/", s.handleCreateGenre)
	})

	s.router.Get("/recommendations", s.handleRecommendations)
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Start boots the HTTP server and blocks until it stops or the context
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
