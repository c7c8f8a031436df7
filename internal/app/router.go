package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/warelane/warelane/internal/container"
	"github.com/warelane/warelane/internal/count"
	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/observability"
	"github.com/warelane/warelane/internal/scan"
	"github.com/warelane/warelane/internal/stock"
	"github.com/warelane/warelane/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config            *Config
	Logger            *slog.Logger
	ScanHandler       *scan.Handler
	StockHandler      *stock.Handler
	ContainerHandler  *container.Handler
	CountHandler      *count.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Warelane defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/scan", params.ScanHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)
	r.Route("/containers", params.ContainerHandler.MountRoutes)
	r.Route("/counts", params.CountHandler.MountRoutes)
	r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
