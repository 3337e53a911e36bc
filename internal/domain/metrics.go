package domain

import "time"

// CallStatus labels the outcome of an observed call.
type CallStatus string

const (
	CallStatusSuccess CallStatus = "success"
	CallStatusError   CallStatus = "error"
	// CallStatusUnknown marks a tool call whose name did not resolve.
	CallStatusUnknown CallStatus = "unknown"
)

// Metrics records chat client telemetry.
type Metrics interface {
	ObserveProviderConnect(provider string, duration time.Duration, err error)
	ObserveModelCall(provider, model string, duration time.Duration, err error)
	ObserveToolCall(provider, tool string, status CallStatus, duration time.Duration)
	ObserveQuery(rounds int, duration time.Duration, err error)
	SetRegisteredCapabilities(kind string, count int)
}

// HistoryEntry is an archived top-level query.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer,omitempty"`
	Error     string    `json:"error,omitempty"`
	Rounds    int       `json:"rounds"`
	ToolCalls int       `json:"toolCalls"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"startedAt"`
	Duration  int64     `json:"durationMs"`
}

// HistoryRecorder archives finished queries.
type HistoryRecorder interface {
	Record(entry HistoryEntry) error
}
