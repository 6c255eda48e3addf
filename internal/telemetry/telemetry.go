// Package telemetry holds sinks for the per-tick samples a loop reports.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/san-kum/jointctl/internal/dynamo"
)

// Recorder keeps the most recent samples in a ring.
type Recorder struct {
	mu    sync.RWMutex
	buf   []dynamo.Sample
	next  int
	full  bool
	total uint64
}

func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{buf: make([]dynamo.Sample, capacity)}
}

func (r *Recorder) Report(s dynamo.Sample) error {
	r.mu.Lock()
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.total++
	r.mu.Unlock()
	return nil
}

// Samples returns the retained samples, oldest first.
func (r *Recorder) Samples() []dynamo.Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]dynamo.Sample(nil), r.buf[:r.next]...)
	}
	out := make([]dynamo.Sample, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Last returns the newest sample.
func (r *Recorder) Last() (dynamo.Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.total == 0 {
		return dynamo.Sample{}, false
	}
	i := (r.next - 1 + len(r.buf)) % len(r.buf)
	return r.buf[i], true
}

func (r *Recorder) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Series extracts one value per retained sample.
func (r *Recorder) Series(f func(dynamo.Sample) float64) []float64 {
	samples := r.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

// Logger writes every Every-th sample at debug level.
type Logger struct {
	Log   *slog.Logger
	Every uint64
}

func (l Logger) Report(s dynamo.Sample) error {
	if l.Log == nil {
		return errors.New("telemetry: no logger")
	}
	if l.Every > 1 && s.Tick%l.Every != 0 {
		return nil
	}
	l.Log.LogAttrs(context.Background(), slog.LevelDebug, "tick",
		slog.Uint64("tick", s.Tick),
		slog.Float64("goal", s.Goal),
		slog.Float64("angle", s.Angle),
		slog.Float64("reference", s.Reference.Position),
		slog.Float64("estimate", s.Estimate.Position),
		slog.Float64("voltage", s.Voltage),
		slog.Bool("saturated", s.Saturated),
	)
	return nil
}

// Multi fans a sample out to every sink and joins their errors.
type Multi []dynamo.Telemetry

func (m Multi) Report(s dynamo.Sample) error {
	var errs []error
	for _, t := range m {
		if err := t.Report(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
