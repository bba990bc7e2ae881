package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for run ID
	RunIDKey ContextKey = "run_id"
	// BatchIDKey is the context key for the dispatch batch ID
	BatchIDKey ContextKey = "batch_id"
	// TaskIndexKey is the context key for a task's position in its batch
	TaskIndexKey ContextKey = "task_index"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RunID     string
	BatchID   string
	TaskIndex int
	HasTask   bool
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithBatchID adds a batch ID to the context
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// WithTaskIndex adds a task index to the context
func WithTaskIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, TaskIndexKey, index)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetBatchID retrieves the batch ID from the context
func GetBatchID(ctx context.Context) string {
	if batchID, ok := ctx.Value(BatchIDKey).(string); ok {
		return batchID
	}
	return ""
}

// GetTaskIndex retrieves the task index from the context
func GetTaskIndex(ctx context.Context) (int, bool) {
	index, ok := ctx.Value(TaskIndexKey).(int)
	return index, ok
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	index, hasTask := GetTaskIndex(ctx)
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RunID:     GetRunID(ctx),
		BatchID:   GetBatchID(ctx),
		TaskIndex: index,
		HasTask:   hasTask,
	}
}

// NewRunContext starts a run with a fresh run ID, keeping an existing trace ID
func NewRunContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithRunID(ctx, NewRunID())
}

// Logger returns logger enriched with the tracing fields found in ctx
func Logger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		lc = lc.Str("run_id", tc.RunID)
	}
	if tc.BatchID != "" {
		lc = lc.Str("batch_id", tc.BatchID)
	}
	if tc.HasTask {
		lc = lc.Int("task_index", tc.TaskIndex)
	}
	return lc.Logger()
}
