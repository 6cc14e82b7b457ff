// Package tracing records lightweight span trees for the search path and
// logs them through slog when a trace is sampled.
package tracing

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/config"
)

type contextKey struct{}

// Tracer decides which traces are kept. A nil *Tracer is valid and records
// nothing.
type Tracer struct {
	sampleRate float64
	logger     *slog.Logger
}

// New returns nil when tracing is disabled.
func New(cfg config.TracingConfig) *Tracer {
	if !cfg.Enabled || cfg.SampleRate <= 0 {
		return nil
	}
	return &Tracer{
		sampleRate: cfg.SampleRate,
		logger:     slog.Default().With("component", "tracing"),
	}
}

// Span is a timed operation; children are attached by StartChild.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Attrs    map[string]any
	Children []*Span

	tracer *Tracer
	root   bool
	mu     sync.Mutex
}

// Start opens a root span when the trace is sampled, otherwise it returns
// ctx unchanged and a nil span. All Span methods accept a nil receiver.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if t == nil || (t.sampleRate < 1 && rand.Float64() >= t.sampleRate) {
		return ctx, nil
	}
	s := &Span{Name: name, TraceID: traceID, Start: time.Now(), Attrs: map[string]any{}, tracer: t, root: true}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChild opens a span under the one stored in ctx, if any.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{Name: name, TraceID: parent.TraceID, Start: time.Now(), Attrs: map[string]any{}, tracer: parent.tracer}
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// End stops the clock. Ending a root span logs the whole tree.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
	if s.root {
		s.log(0)
	}
}

func (s *Span) log(depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_us", s.Duration.Microseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	s.tracer.logger.Info("span", attrs...)
	for _, c := range children {
		c.log(depth + 1)
	}
}
