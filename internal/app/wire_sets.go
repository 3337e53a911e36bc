//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewMetricsRegistry,
	NewMetrics,
	NewCapabilityRegistry,
	NewConnector,
	NewLifecycleManager,
	NewCatalogLoader,
)

var ChatSet = wire.NewSet(
	NewModel,
	NewHistoryStore,
	NewHistoryRecorder,
	NewEngine,
	NewRouter,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	ChatSet,
)
