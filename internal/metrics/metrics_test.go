package metrics

import (
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()

	c := r.RegisterCounter("test_total", "test counter")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("counter = %d, want 5", c.Value())
	}

	// Re-registering returns the same metric.
	if r.RegisterCounter("test_total", "test counter") != c {
		t.Error("duplicate registration created a new counter")
	}

	g := r.RegisterGauge("test_size", "test gauge")
	g.Set(23)
	g.Inc()
	g.Add(-4)
	if g.Value() != 20 {
		t.Errorf("gauge = %d, want 20", g.Value())
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	r := NewRegistry()
	h := r.RegisterHistogram("test_duration_seconds", "test histogram", []float64{0.1, 1, 10})

	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50)

	if h.Count() != 4 {
		t.Errorf("count = %d, want 4", h.Count())
	}

	var sb strings.Builder
	if err := r.Write(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		`test_duration_seconds_bucket{le="0.1"} 1`,
		`test_duration_seconds_bucket{le="1"} 2`,
		`test_duration_seconds_bucket{le="10"} 3`,
		`test_duration_seconds_bucket{le="+Inf"} 4`,
		`test_duration_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestExpositionFormat(t *testing.T) {
	r := NewRegistry()
	m := NewMMRDMetrics(r)
	m.LeavesTotal.Add(95)
	m.RangeSize.Set(184)

	var sb strings.Builder
	if err := r.Write(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		"# TYPE mmrd_leaves_total counter",
		"mmrd_leaves_total 95",
		"# TYPE mmrd_range_size gauge",
		"mmrd_range_size 184",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
