package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID  contextKey = "trace_id"
	keyRunID    contextKey = "run_id"
	keyStageID  contextKey = "stage_id"
	keyTeamName contextKey = "team_name"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithRunID adds run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithStageID adds the executing stage ID to context.
func WithStageID(ctx context.Context, stageID string) context.Context {
	return context.WithValue(ctx, keyStageID, stageID)
}

// StageID extracts the executing stage ID from context.
func StageID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyStageID).(string)
	return v, ok && v != ""
}

// WithTeamName adds the invoked team name to context.
func WithTeamName(ctx context.Context, team string) context.Context {
	return context.WithValue(ctx, keyTeamName, team)
}

// TeamName extracts the invoked team name from context.
func TeamName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTeamName).(string)
	return v, ok && v != ""
}
