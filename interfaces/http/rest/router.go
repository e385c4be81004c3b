// Package rest assembles the HTTP surface of the versioned item
// engine: requirements, changes with their milestones, baselines,
// waves, stakeholders and the relationship audit ledger.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/infrastructure/messaging"
	"reqtrack-backend/interfaces/http/rest/handlers"
	"reqtrack-backend/interfaces/http/rest/middleware"
	"reqtrack-backend/internal/entities"
	"reqtrack-backend/internal/store"
	"reqtrack-backend/pkg/observability"
)

// Router assembles the route tree from the wired stores.
type Router struct {
	Substrate    graph.Substrate
	Requirements *entities.RequirementStore
	Changes      *entities.ChangeStore
	Milestones   *entities.MilestoneService
	Baselines    *store.BaselineStore
	Waves        *store.WaveStore
	Stakeholders *store.StakeholderStore
	Publisher    messaging.Publisher
	Metrics      *observability.Metrics
	Gatherer     prometheus.Gatherer
	Logger       *zap.Logger

	// RequestTimeoutSeconds, when set, bounds each request with a
	// deadline read at request time; hot-reloaded values apply without
	// a restart.
	RequestTimeoutSeconds func() int
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(rt.Logger))
	r.Use(middleware.Logging(rt.Logger, rt.Metrics))
	if rt.RequestTimeoutSeconds != nil {
		r.Use(middleware.DynamicTimeout(rt.RequestTimeoutSeconds))
	}

	r.Get("/health", rt.healthCheck)
	r.Get("/ready", rt.readinessCheck)
	if rt.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/requirements", func(r chi.Router) {
			handlers.NewItemHandler(rt.Substrate, rt.Requirements, rt.Publisher, rt.Logger).Mount(r)
		})
		r.Route("/changes", func(r chi.Router) {
			handlers.NewItemHandler(rt.Substrate, rt.Changes, rt.Publisher, rt.Logger).Mount(r)
			r.Route("/{itemId}/milestones", func(r chi.Router) {
				handlers.NewMilestoneHandler(rt.Substrate, rt.Milestones, rt.Logger).Mount(r)
			})
		})
		r.Route("/baselines", func(r chi.Router) {
			handlers.NewBaselineHandler(rt.Substrate, rt.Baselines, rt.Publisher, rt.Logger).Mount(r)
		})
		r.Route("/waves", func(r chi.Router) {
			handlers.NewWaveHandler(rt.Substrate, rt.Waves, rt.Logger).Mount(r)
		})
		r.Route("/stakeholders", func(r chi.Router) {
			handlers.NewStakeholderHandler(rt.Substrate, rt.Stakeholders, rt.Logger).Mount(r)
		})
		r.Route("/audit", func(r chi.Router) {
			handlers.NewAuditHandler(rt.Substrate, rt.Changes.Audit(), rt.Logger).Mount(r)
		})
	})

	return r
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readinessCheck verifies the substrate answers before reporting ready.
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	tx, err := rt.Substrate.Begin(r.Context(), "readiness")
	if err != nil {
		http.Error(w, "substrate unavailable", http.StatusServiceUnavailable)
		return
	}
	defer tx.Rollback()
	if _, _, err := tx.GetNode(r.Context(), "readiness-probe"); err != nil {
		http.Error(w, "substrate unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
