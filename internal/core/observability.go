package core

import (
	"context"
	"log/slog"
	"time"

	"carbonscope/pkg/domain"
)

// Clock abstracts the service time source so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock. A nil function falls back to
// the system clock. Returned times are normalized to UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// MetricsRecorder receives one observation per instrumented service
// operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span per instrumented service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span opened by a Tracer.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the recorded outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// Audit actions recorded for mutating service operations.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionInstall = "install"
)

// AuditEntry captures one mutating service operation for the audit trail.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    string        `json:"entity"`
	Action    string        `json:"action"`
	EntityID  string        `json:"entity_id,omitempty"`
	Status    AuditStatus   `json:"status"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts an slog.Logger to the domain logging contract used
// throughout the module. A nil argument adapts slog.Default().
func NewSlogLogger(l *slog.Logger) domain.Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
