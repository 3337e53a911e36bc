package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/catalog"
	"mcpchat/internal/infra/engine"
	"mcpchat/internal/infra/history"
	"mcpchat/internal/infra/lifecycle"
	"mcpchat/internal/infra/llm"
	"mcpchat/internal/infra/registry"
	"mcpchat/internal/infra/router"
	"mcpchat/internal/infra/telemetry"
	"mcpchat/internal/infra/transport"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

// NewMetrics records into the registry only when it is exported.
func NewMetrics(cfg ChatConfig, registry *prometheus.Registry) domain.Metrics {
	if cfg.Settings.Metrics.ListenAddress == "" {
		return telemetry.NewNoopMetrics()
	}
	return telemetry.NewPrometheusMetrics(registry)
}

func NewCapabilityRegistry(logger *zap.Logger, metrics domain.Metrics) *registry.Registry {
	return registry.New(logger, metrics)
}

func NewConnector(logger *zap.Logger) domain.Connector {
	return transport.NewConnector(transport.ConnectorOptions{
		Logger:        logger,
		ClientName:    domain.DefaultClientName,
		ClientVersion: Version,
	})
}

func NewLifecycleManager(connector domain.Connector, reg *registry.Registry, metrics domain.Metrics, logger *zap.Logger) *lifecycle.Manager {
	return lifecycle.NewManager(connector, reg, metrics, logger)
}

func NewModel(ctx context.Context, cfg ChatConfig) (domain.Model, error) {
	model, err := llm.NewModel(ctx, cfg.Settings.LLMConfig())
	if err != nil {
		return nil, fmt.Errorf("initialize model: %w", err)
	}
	return model, nil
}

// NewHistoryStore opens the archive when a path is configured and returns
// nil otherwise.
func NewHistoryStore(cfg ChatConfig) (*history.Store, error) {
	if cfg.Settings.History.Path == "" {
		return nil, nil
	}
	return history.OpenStore(cfg.Settings.History.Path)
}

func NewHistoryRecorder(store *history.Store) domain.HistoryRecorder {
	if store == nil {
		return nil
	}
	return store
}

func NewEngine(cfg ChatConfig, model domain.Model, reg *registry.Registry, metrics domain.Metrics, recorder domain.HistoryRecorder, logger *zap.Logger) *engine.Engine {
	return engine.New(engine.Options{
		Model:     model,
		Catalog:   reg,
		Metrics:   metrics,
		History:   recorder,
		Logger:    logger,
		MaxRounds: cfg.Settings.Chat.MaxRounds,
	})
}

func NewRouter(cfg ChatConfig, reg *registry.Registry, eng *engine.Engine, logger *zap.Logger) *router.Router {
	return router.New(router.Options{
		Catalog:        reg,
		Engine:         eng,
		Out:            cfg.Out,
		Logger:         logger,
		ResourceScheme: cfg.Settings.Chat.ResourceScheme,
	})
}

func NewCatalogLoader(logger *zap.Logger) *catalog.Loader {
	return catalog.NewLoader(logger)
}
