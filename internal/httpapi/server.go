// Package httpapi is the authenticated HTTP boundary (spec.md §4.3/§6):
// chi router, per-scope API-key authorization, and one handler set per
// resource family.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/config"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/filecache"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/keystore"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/orchestrator"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Version is the build-reported service version, overridable at link time
// via -ldflags "-X .../httpapi.Version=...".
var Version = "dev"

// Deps are every collaborator the HTTP surface dispatches to. None of them
// is owned by this package; Server only routes and authenticates.
type Deps struct {
	Config       *config.Config
	Catalog      *catalog.Catalog
	Orchestrator *orchestrator.Orchestrator
	Cache        *filecache.Cache
	KeyStore     *keystore.KeyStore
	Discovery    *worker.Runner
	LabelSync    *worker.Runner
	Log          *zap.Logger
}

// Server wraps the HTTP listener serving the authenticated surface.
type Server struct {
	httpServer *http.Server
	startTime  time.Time
}

// NewServer builds the chi router and binds it to addr.
func NewServer(addr string, deps Deps) *Server {
	h := &handlers{deps: deps, startTime: time.Now()}

	r := chi.NewRouter()
	r.Use(corsMiddleware().Handler)
	r.Use(metricsMiddleware)

	r.Get("/", h.root)
	r.Get("/version", h.version)

	r.Group(func(r chi.Router) {
		r.Use(requireScope(deps.KeyStore, ""))
		r.Post("/api/v1/jobs/retrieve_batch", h.retrieveBatch)
		r.Put("/api/v1/jobs/status", h.setJobStatus)
	})

	r.With(requireScope(deps.KeyStore, keystore.ScopeGetRawFile)).Get("/api/v1/data/raw/{checksum}", h.getRawFile)
	r.With(requireScope(deps.KeyStore, keystore.ScopeGetRawFile)).Get("/api/v1/data/lens_cal/{cameraId}", h.getLensCal)

	r.With(requireScope(deps.KeyStore, keystore.ScopeGetLaserFrame)).Get("/api/v1/data/preprocess_jpeg/{checksum}", h.getPreprocessJPEG)
	r.With(requireScope(deps.KeyStore, keystore.ScopePutPreprocessFrame)).Put("/api/v1/data/preprocess_jpeg/{checksum}", h.putPreprocessJPEG)

	r.With(requireScope(deps.KeyStore, keystore.ScopeGetLaserFrame)).Get("/api/v1/data/laser_jpeg/{checksum}", h.getLaserJPEG)
	r.With(requireScope(deps.KeyStore, keystore.ScopePutLaserFrame)).Put("/api/v1/data/laser_jpeg/{checksum}", h.putLaserJPEG)
	r.With(requireScope(deps.KeyStore, keystore.ScopeAdmin)).Delete("/api/v1/data/laser_jpeg/{checksum}", h.deleteLaserJPEG)

	r.With(requireScope(deps.KeyStore, keystore.ScopeGetRawFile)).Get("/api/v1/data/laser/{checksum}", h.getLaserLabel)
	r.With(requireScope(deps.KeyStore, keystore.ScopeAdmin)).Delete("/api/v1/data/head_tail/{checksum}", h.deleteHeadTailLabel)

	r.With(requireScope(deps.KeyStore, keystore.ScopeDoDiscovery)).Post("/api/v1/control/discover", h.triggerDiscover)
	r.With(requireScope(deps.KeyStore, keystore.ScopeDoLabelStudioSync)).Post("/api/v1/control/label_studio_sync", h.triggerLabelSync)

	r.With(requireScope(deps.KeyStore, keystore.ScopePutDebugBlob)).Put("/api/v1/debug/{id}", h.putDebugBlob)

	r.With(requireScope(deps.KeyStore, keystore.ScopeAdmin)).Get("/api/v1/admin/scope", h.getScopes)
	r.With(requireScope(deps.KeyStore, keystore.ScopeAdmin)).Put("/api/v1/admin/scope", h.putScope)
	r.With(requireScope(deps.KeyStore, keystore.ScopeAdmin)).Delete("/api/v1/admin/scope", h.deleteScope)
	r.With(requireScope(deps.KeyStore, keystore.ScopeAdmin)).Post("/api/v1/admin/new_key", h.newKey)

	r.With(requireScope(deps.KeyStore, keystore.ScopeGetMetadata)).Get("/api/v1/metadata/frame/{checksum}", h.metadataFrame)
	r.With(requireScope(deps.KeyStore, keystore.ScopeGetMetadata)).Get("/api/v1/metadata/dive/{checksum}", h.metadataDive)
	r.With(requireScope(deps.KeyStore, keystore.ScopeGetMetadata)).Get("/api/v1/metadata/dives", h.metadataDives)

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: r},
		startTime:  h.startTime,
	}
}

func corsMiddleware() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"api_key", "Content-Type"},
		MaxAge:           300,
		AllowCredentials: false,
	})
}

func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type handlers struct {
	deps      Deps
	startTime time.Time
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "fishsense-data-processing-spider %s, up since %s\n", Version, h.startTime.UTC().Format(time.RFC3339))
}

func (h *handlers) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}
