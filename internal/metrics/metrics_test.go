package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_Counter(t *testing.T) {
	m := New()

	m.IncrCounter("downloads.success")
	m.IncrCounter("downloads.success")
	m.AddCounter("downloads.success", 3)

	snap := m.GetSnapshot()
	if snap.Counters["downloads.success"] != 5 {
		t.Errorf("Counter = %v, want 5", snap.Counters["downloads.success"])
	}
}

func TestMetrics_Gauge(t *testing.T) {
	m := New()

	m.SetGauge("files.total", 12)
	m.SetGauge("files.total", 48)

	snap := m.GetSnapshot()
	if snap.Gauges["files.total"] != 48 {
		t.Errorf("Gauge = %v, want 48", snap.Gauges["files.total"])
	}
}

func TestMetrics_Timing(t *testing.T) {
	m := New()

	m.RecordTiming("source.WARN", 100*time.Millisecond)
	m.RecordTiming("source.WARN", 200*time.Millisecond)
	m.RecordTiming("source.WARN", 150*time.Millisecond)

	snap := m.GetSnapshot()
	stats, ok := snap.Timings["source.WARN"]
	if !ok {
		t.Fatal("timing source.WARN missing from snapshot")
	}

	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.Min != 100*time.Millisecond {
		t.Errorf("Min = %v, want 100ms", stats.Min)
	}
	if stats.Max != 200*time.Millisecond {
		t.Errorf("Max = %v, want 200ms", stats.Max)
	}
	if stats.Average != 150*time.Millisecond {
		t.Errorf("Average = %v, want 150ms", stats.Average)
	}
}

func TestMetrics_SnapshotIsACopy(t *testing.T) {
	m := New()
	m.IncrCounter("a")

	snap := m.GetSnapshot()
	snap.Counters["a"] = 99

	if got := m.GetSnapshot().Counters["a"]; got != 1 {
		t.Errorf("Counter after mutating snapshot = %v, want 1", got)
	}
}

func TestMetrics_ConcurrentUpdates(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IncrCounter("races")
			}
		}()
	}
	wg.Wait()

	if got := m.GetSnapshot().Counters["races"]; got != 1000 {
		t.Errorf("Counter = %v, want 1000", got)
	}
}
