package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/registry"
	"mcpchat/internal/infra/telemetry"
)

// Failure records one provider that could not be connected.
type Failure struct {
	Provider string
	Err      error
}

// Report summarizes a ConnectAll pass.
type Report struct {
	Connected []string
	Skipped   []string
	Failures  []Failure
}

// Manager owns every open provider session. It is the only component
// allowed to close them.
type Manager struct {
	connector domain.Connector
	registry  *registry.Registry
	metrics   domain.Metrics
	logger    *zap.Logger

	mu       sync.Mutex
	sessions []domain.Session
	names    map[string]struct{}
	closed   bool
}

func NewManager(connector domain.Connector, reg *registry.Registry, metrics domain.Metrics, logger *zap.Logger) *Manager {
	if connector == nil {
		panic("lifecycle.Manager requires a connector")
	}
	if reg == nil {
		panic("lifecycle.Manager requires a registry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Manager{
		connector: connector,
		registry:  reg,
		metrics:   metrics,
		logger:    logger.Named("lifecycle"),
		names:     make(map[string]struct{}),
	}
}

// ConnectAll connects every spec in order. A failing provider is logged and
// recorded; it never stops the remaining connections.
func (m *Manager) ConnectAll(ctx context.Context, specs []domain.ProviderSpec) Report {
	var report Report
	for _, spec := range specs {
		if spec.Disabled {
			m.logger.Info("provider disabled, skipping", telemetry.ProviderField(spec.Name))
			report.Skipped = append(report.Skipped, spec.Name)
			continue
		}
		if err := m.Connect(ctx, spec); err != nil {
			report.Failures = append(report.Failures, Failure{Provider: spec.Name, Err: err})
			continue
		}
		report.Connected = append(report.Connected, spec.Name)
	}
	return report
}

// Connect opens one provider session, discovers its capabilities and
// registers them.
func (m *Manager) Connect(ctx context.Context, spec domain.ProviderSpec) error {
	const op = "lifecycle.Connect"
	started := time.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.E(domain.KindConnectionFailure, op, "", domain.ErrManagerClosed)
	}
	if _, exists := m.names[spec.Name]; exists {
		m.mu.Unlock()
		return domain.E(domain.KindConnectionFailure, op, fmt.Sprintf("%s: %s", domain.ErrProviderExists, spec.Name), domain.ErrProviderExists)
	}
	// Reserve the name so a concurrent reload cannot open it twice.
	m.names[spec.Name] = struct{}{}
	m.mu.Unlock()

	m.logger.Info("provider connect attempt",
		telemetry.EventField(telemetry.EventConnectAttempt),
		telemetry.ProviderField(spec.Name),
	)

	session, caps, err := m.open(ctx, spec)
	m.metrics.ObserveProviderConnect(spec.Name, time.Since(started), err)
	if err != nil {
		m.mu.Lock()
		delete(m.names, spec.Name)
		m.mu.Unlock()
		m.logger.Error("provider connect failed",
			telemetry.EventField(telemetry.EventConnectFailure),
			telemetry.ProviderField(spec.Name),
			telemetry.DurationField(time.Since(started)),
			zap.Error(err),
		)
		return domain.Wrap(domain.KindConnectionFailure, op, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = session.Close()
		return domain.E(domain.KindConnectionFailure, op, "", domain.ErrManagerClosed)
	}
	m.sessions = append(m.sessions, session)
	m.mu.Unlock()

	m.registry.Register(session, caps)

	m.logger.Info("provider connected",
		telemetry.EventField(telemetry.EventConnectSuccess),
		telemetry.ProviderField(spec.Name),
		telemetry.DurationField(time.Since(started)),
		zap.Int("tools", len(caps.Tools)),
		zap.Int("prompts", len(caps.Prompts)),
		zap.Int("resources", len(caps.Resources)+len(caps.Templates)),
	)
	return nil
}

func (m *Manager) open(ctx context.Context, spec domain.ProviderSpec) (domain.Session, registry.Capabilities, error) {
	session, err := m.connector.Connect(ctx, spec)
	if err != nil {
		return nil, registry.Capabilities{}, err
	}
	if session == nil {
		return nil, registry.Capabilities{}, errors.New("connector returned nil session")
	}
	caps, err := discover(ctx, session)
	if err != nil {
		if closeErr := session.Close(); closeErr != nil {
			m.logger.Warn("close after failed discovery", telemetry.ProviderField(spec.Name), zap.Error(closeErr))
		}
		return nil, registry.Capabilities{}, err
	}
	return session, caps, nil
}

// discover lists every capability the provider advertises. Sessions that do
// not report capabilities are asked for all of them.
func discover(ctx context.Context, session domain.Session) (registry.Capabilities, error) {
	advertised := domain.CapabilitySet{Tools: true, Prompts: true, Resources: true}
	if reporter, ok := session.(domain.CapabilityReporter); ok {
		advertised = reporter.Capabilities()
	}

	var caps registry.Capabilities
	var err error
	if advertised.Tools {
		if caps.Tools, err = session.ListTools(ctx); err != nil {
			return caps, err
		}
	}
	if advertised.Prompts {
		if caps.Prompts, err = session.ListPrompts(ctx); err != nil {
			return caps, err
		}
	}
	if advertised.Resources {
		if caps.Resources, err = session.ListResources(ctx); err != nil {
			return caps, err
		}
		if caps.Templates, err = session.ListResourceTemplates(ctx); err != nil {
			return caps, err
		}
	}
	return caps, nil
}

// Sessions returns connected provider names in acquisition order.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session.Name())
	}
	return out
}

// Connected reports whether a provider with name is open or connecting.
func (m *Manager) Connected(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.names[name]
	return ok
}

// Shutdown closes every session once, newest first. Close failures are
// collected; a second call is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = nil
	m.mu.Unlock()

	var errs []error
	for i := len(sessions) - 1; i >= 0; i-- {
		session := sessions[i]
		if err := session.Close(); err != nil {
			m.logger.Warn("provider close failed",
				telemetry.EventField(telemetry.EventCloseFailure),
				telemetry.ProviderField(session.Name()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("close %s: %w", session.Name(), err))
			continue
		}
		m.logger.Debug("provider closed",
			telemetry.EventField(telemetry.EventShutdown),
			telemetry.ProviderField(session.Name()),
		)
	}
	if ctx != nil && ctx.Err() != nil {
		m.logger.Debug("shutdown finished after context end", zap.Error(ctx.Err()))
	}
	return errors.Join(errs...)
}
