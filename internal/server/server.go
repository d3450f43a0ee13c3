package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/importer"
	"github.com/KaramelBytes/listingloom/internal/search"
	"github.com/KaramelBytes/listingloom/internal/store"
)

const (
	DefaultMaxUploadBytes = 32 << 20
	shutdownTimeout       = 10 * time.Second
)

// Deps are the components the HTTP surface drives.
type Deps struct {
	Store    store.Store
	Importer *importer.Importer
	Sessions *importer.Sessions
	Search   *search.Service

	PreviewLimit   int
	MaxUploadBytes int64
	AllowedOrigins []string
	// DetailPath is where formatted answers link listings, e.g. "/listings/".
	DetailPath string
}

type handlers struct {
	Deps
}

// NewRouter wires every route with recovery, CORS, metrics and access logs.
func NewRouter(d Deps) http.Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Metrics)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/import/preview", h.preview)
		r.Post("/import/batch", h.batch)
		r.Delete("/records", h.purge)
		r.Get("/records/{externalID}", h.record)
		r.Get("/stats", h.stats)
		r.Post("/search", h.search)
	})

	if p := detailRoute(d.DetailPath); p != "" && !strings.HasPrefix(p, "/api/") {
		r.Get(p+"{externalID}", h.record)
	}
	return r
}

// detailRoute normalizes the detail path to "/x/".
func detailRoute(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p + "/"
}

// Server runs the HTTP surface until its context ends.
type Server struct {
	srv *http.Server
}

func New(addr string, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
