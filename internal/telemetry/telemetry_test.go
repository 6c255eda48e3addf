package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/san-kum/jointctl/internal/dynamo"
)

func sample(tick uint64) dynamo.Sample {
	return dynamo.Sample{Tick: tick, Voltage: float64(tick)}
}

func TestRecorderRing(t *testing.T) {
	r := NewRecorder(3)
	if _, ok := r.Last(); ok {
		t.Error("empty recorder has no last sample")
	}

	for i := uint64(1); i <= 5; i++ {
		r.Report(sample(i))
	}

	got := r.Series(func(s dynamo.Sample) float64 { return s.Voltage })
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if last, _ := r.Last(); last.Tick != 5 {
		t.Errorf("last tick %d", last.Tick)
	}
	if r.Total() != 5 {
		t.Errorf("total %d", r.Total())
	}
}

func TestRecorderPartial(t *testing.T) {
	r := NewRecorder(10)
	r.Report(sample(1))
	r.Report(sample(2))
	if s := r.Samples(); len(s) != 2 || s[0].Tick != 1 {
		t.Errorf("unexpected samples %v", s)
	}
}

func TestLoggerEvery(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Log: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Every: 5}
	for i := uint64(1); i <= 10; i++ {
		if err := l.Report(sample(i)); err != nil {
			t.Fatal(err)
		}
	}
	if n := strings.Count(buf.String(), "msg=tick"); n != 2 {
		t.Errorf("expected 2 lines, got %d:\n%s", n, buf.String())
	}
	if err := (Logger{}).Report(sample(1)); err == nil {
		t.Error("expected error without a logger")
	}
}

type failing struct{}

func (failing) Report(dynamo.Sample) error { return errors.New("broken pipe") }

func TestMulti(t *testing.T) {
	r := NewRecorder(4)
	m := Multi{failing{}, r}
	err := m.Report(sample(1))
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("expected joined error, got %v", err)
	}
	if r.Total() != 1 {
		t.Error("healthy sink must still receive the sample")
	}
	if err := (Multi{r}).Report(sample(2)); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
