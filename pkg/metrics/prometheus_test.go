package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// sample returns the summed counter or gauge value of a gathered family.
func sample(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
		return sum
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordFill("BUY")
	r.RecordFill("BUY")
	r.RecordRejected("max_positions")
	r.RecordEquity("u1", 1_050_000)
	r.RecordError("stream")
	r.RecordTick(0.2)

	if got := sample(t, reg, "btctrader_fills_total"); got != 2 {
		t.Fatalf("fills = %v", got)
	}
	if got := sample(t, reg, "btctrader_rejected_total"); got != 1 {
		t.Fatalf("rejected = %v", got)
	}
	if got := sample(t, reg, "btctrader_equity"); got != 1_050_000 {
		t.Fatalf("equity = %v", got)
	}
	if got := sample(t, reg, "btctrader_errors_total"); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}

func TestRecorderIsolatedRegistries(t *testing.T) {
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}
