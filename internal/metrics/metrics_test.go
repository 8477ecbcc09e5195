package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistrySizeGauge(t *testing.T) {
	size := 3
	m := New(func() int { return size })

	m.DetectionsAccepted.WithLabelValues(SourceImage).Add(2)
	m.ObserveInference(SourceImage, time.Now())

	body := scrape(t, m)
	for _, want := range []string{
		"lpr_registry_size 3",
		`lpr_detections_accepted_total{source="image"} 2`,
		`lpr_inference_duration_seconds_count{source="image"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a := New(nil)
	b := New(nil)

	a.RegistryInserted.Inc()

	if got := scrape(t, a); !strings.Contains(got, "lpr_registry_inserted_total 1") {
		t.Errorf("a missing increment:\n%s", got)
	}
	if got := scrape(t, b); !strings.Contains(got, "lpr_registry_inserted_total 0") {
		t.Errorf("b was incremented:\n%s", got)
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}
