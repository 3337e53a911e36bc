package telemetry

import (
	"time"

	"mcpchat/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveProviderConnect(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveModelCall(_, _ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveToolCall(_, _ string, _ domain.CallStatus, _ time.Duration) {}

func (n *NoopMetrics) ObserveQuery(_ int, _ time.Duration, _ error) {}

func (n *NoopMetrics) SetRegisteredCapabilities(_ string, _ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
