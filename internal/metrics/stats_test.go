package metrics

import (
	"testing"
	"time"

	"remotepad/internal/model"
)

func TestSummarize_Basic(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	items := []model.SendSample{
		{Timestamp: now.Add(-2 * time.Hour), Action: "mouse_move", Bytes: 40, WriteMs: 100, OK: true},
		{Timestamp: now.Add(-10 * time.Second), Action: "mouse_move", Bytes: 40, WriteMs: 1, OK: true},
		{Timestamp: now.Add(-5 * time.Second), Action: "keyboard", Bytes: 35, WriteMs: 3, OK: true},
		{Timestamp: now.Add(-4 * time.Second), Action: "keyboard", OK: false, Error: "broken pipe"},
	}
	s := Summarize(items, now.Add(-1*time.Minute))
	if s.Count != 3 {
		t.Fatalf("count=%d", s.Count)
	}
	if s.Failures != 1 {
		t.Fatalf("failures=%d", s.Failures)
	}
	if s.Bytes != 75 {
		t.Fatalf("bytes=%d", s.Bytes)
	}
	if s.AvgWriteMs != 2 || s.MaxWriteMs != 3 || s.P95WriteMs != 3 {
		t.Fatalf("avg/max/p95=%.2f/%.2f/%.2f", s.AvgWriteMs, s.MaxWriteMs, s.P95WriteMs)
	}
	if s.ByAction["keyboard"] != 2 || s.ByAction["mouse_move"] != 1 {
		t.Fatalf("by_action=%v", s.ByAction)
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	if s := Summarize(nil, time.Time{}); s.Count != 0 {
		t.Fatalf("count=%d", s.Count)
	}
}

func TestPercentile_Edges(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4}
	if got := percentile(values, 0); got != 1 {
		t.Fatalf("p0=%v", got)
	}
	if got := percentile(values, 1); got != 4 {
		t.Fatalf("p100=%v", got)
	}
}

func TestRecorder_EvictsOldest(t *testing.T) {
	t.Parallel()

	r := NewRecorder(2)
	r.Record(model.SendSample{Action: "a"})
	r.Record(model.SendSample{Action: "b"})
	r.Record(model.SendSample{Action: "c"})

	got := r.Samples()
	if len(got) != 2 || got[0].Action != "b" || got[1].Action != "c" {
		t.Fatalf("samples=%+v", got)
	}

	var nilRecorder *Recorder
	nilRecorder.Record(model.SendSample{})
	if nilRecorder.Samples() != nil {
		t.Fatal("nil recorder returned samples")
	}
}
