package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldProvider   = "provider"
	FieldTool       = "tool"
	FieldPrompt     = "prompt"
	FieldResource   = "uri"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
	FieldLogStream  = "stream"
	FieldQueryID    = "query_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventConnectAttempt = "connect_attempt"
	EventConnectSuccess = "connect_success"
	EventConnectFailure = "connect_failure"
	EventDiscovery      = "discovery"
	EventToolCall       = "tool_call"
	EventToolFailure    = "tool_failure"
	EventModelCall      = "model_call"
	EventModelFailure   = "model_failure"
	EventQueryDone      = "query_done"
	EventShutdown       = "shutdown"
	EventCloseFailure   = "close_failure"
	EventConfigReload   = "config_reload"
)

const (
	LogSourceCore       = "core"
	LogSourceDownstream = "downstream"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ProviderField(provider string) zap.Field {
	return zap.String(FieldProvider, provider)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func PromptField(prompt string) zap.Field {
	return zap.String(FieldPrompt, prompt)
}

func ResourceField(uri string) zap.Field {
	return zap.String(FieldResource, uri)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func QueryIDField(value string) zap.Field {
	return zap.String(FieldQueryID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
