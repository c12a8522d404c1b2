package types

type contextKey string

// Context keys set by the HTTP layer and read by the telemetry handler.
const (
	ContextKeyRequestID     contextKey = "request_id"
	ContextKeyRequestSource contextKey = "request_source"
	ContextKeyRunID         contextKey = "run_id"
)
