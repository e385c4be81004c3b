// Package di wires the application together. The graph is described
// with Google Wire providers; wire_gen.go carries the generated
// initializer.
package di

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"reqtrack-backend/infrastructure/config"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/infrastructure/messaging"
	"reqtrack-backend/internal/entities"
	"reqtrack-backend/internal/store"
	"reqtrack-backend/pkg/observability"
)

// Container holds every wired component of the application.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Substrate graph.Substrate
	Publisher messaging.Publisher
	Watcher   *config.Watcher

	Stores  *Stores
	Handler http.Handler
}

// Stores bundles the entity stores sharing one collaborator registry.
type Stores struct {
	Registry     *store.Registry
	Requirements *entities.RequirementStore
	Changes      *entities.ChangeStore
	Milestones   *entities.MilestoneService
	Baselines    *store.BaselineStore
	Waves        *store.WaveStore
	Stakeholders *store.StakeholderStore
}

// Shutdown stops the config watcher and flushes buffered log entries.
func (c *Container) Shutdown(_ context.Context) error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	return c.Logger.Sync()
}
