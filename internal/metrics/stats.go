package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"remotepad/internal/model"
)

// DefaultCapacity bounds the samples kept by a Recorder.
const DefaultCapacity = 4096

// Recorder keeps the most recent send samples in memory.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	samples  []model.SendSample
}

// NewRecorder creates a recorder holding at most capacity samples.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// Record appends a sample, evicting the oldest once full.
func (r *Recorder) Record(s model.SendSample) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) >= r.capacity {
		copy(r.samples, r.samples[1:])
		r.samples = r.samples[:len(r.samples)-1]
	}
	r.samples = append(r.samples, s)
}

// Samples returns a copy of the recorded samples, oldest first.
func (r *Recorder) Samples() []model.SendSample {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SendSample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Summary is a basic statistics snapshot.
type Summary struct {
	Count      int
	Failures   int
	Bytes      int
	From       time.Time
	To         time.Time
	AvgWriteMs float64
	P95WriteMs float64
	MaxWriteMs float64
	ByAction   map[string]int
}

// Summarize computes summary metrics for samples in a time window.
func Summarize(items []model.SendSample, since time.Time) Summary {
	filtered := make([]model.SendSample, 0, len(items))
	for _, s := range items {
		if s.Timestamp.After(since) || s.Timestamp.Equal(since) {
			filtered = append(filtered, s)
		}
	}

	if len(filtered) == 0 {
		return Summary{Count: 0}
	}

	values := make([]float64, 0, len(filtered))
	byAction := make(map[string]int)
	var sum float64
	failures, bytes := 0, 0
	maxWrite := 0.0
	from := filtered[0].Timestamp
	to := filtered[0].Timestamp

	for _, s := range filtered {
		byAction[s.Action]++
		if !s.OK {
			failures++
			continue
		}
		bytes += s.Bytes
		values = append(values, s.WriteMs)
		sum += s.WriteMs
		if s.WriteMs > maxWrite {
			maxWrite = s.WriteMs
		}
		if s.Timestamp.Before(from) {
			from = s.Timestamp
		}
		if s.Timestamp.After(to) {
			to = s.Timestamp
		}
	}

	summary := Summary{
		Count:      len(filtered),
		Failures:   failures,
		Bytes:      bytes,
		From:       from,
		To:         to,
		MaxWriteMs: maxWrite,
		ByAction:   byAction,
	}
	if len(values) > 0 {
		sort.Float64s(values)
		summary.AvgWriteMs = sum / float64(len(values))
		summary.P95WriteMs = percentile(values, 0.95)
	}
	return summary
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
