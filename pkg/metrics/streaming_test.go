package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStreamingMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewStreamingMetrics(reg)

	metrics.IncStarted("partial")
	metrics.AddBytesSent("partial", 2048)
	metrics.ObserveDuration("partial", 150*time.Millisecond)
	metrics.IncFailed("range_invalid")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stream_started_total", "kind", "partial"); err != nil {
		t.Fatalf("fetch started: %v", err)
	} else if got != 1 {
		t.Fatalf("expected started=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stream_bytes_sent_total", "kind", "partial"); err != nil {
		t.Fatalf("fetch bytes: %v", err)
	} else if got != 2048 {
		t.Fatalf("expected bytes=2048, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stream_failed_total", "reason", "range_invalid"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "stream_duration_seconds", "kind", "partial"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestStreamingMetricsNilSafe(t *testing.T) {
	var metrics *StreamingMetrics
	metrics.IncStarted("full")
	metrics.IncFailed("store_unavailable")
	metrics.AddBytesSent("full", 10)
	metrics.ObserveDuration("full", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
