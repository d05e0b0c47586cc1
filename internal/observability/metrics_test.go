package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies that label dimensions match their use in the
// client, applet, settings and bridge packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("POST", "/popup/{id}/closed", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/state").Observe(0.001)
	StationFetchesTotal.WithLabelValues("success").Inc()
	StationFetchDuration.WithLabelValues("error").Observe(0.2)
	StationFetchErrorsTotal.WithLabelValues("parsing").Inc()
	AppletEventsTotal.WithLabelValues("tick").Inc()
	AppletEventsDroppedTotal.WithLabelValues("tick").Inc()
	SettingsWriteErrorsTotal.WithLabelValues("latitude").Inc()
	RateLimitDeniedTotal.Inc()
}

func TestRecordPopup(t *testing.T) {
	RecordPopup(true)
	if got := testutil.ToFloat64(PopupOpen); got != 1 {
		t.Errorf("PopupOpen = %v after open, want 1", got)
	}
	RecordPopup(false)
	if got := testutil.ToFloat64(PopupOpen); got != 0 {
		t.Errorf("PopupOpen = %v after close, want 0", got)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	StationFetchesTotal.WithLabelValues("success").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "stationFetchesTotal") {
		t.Error("MetricsHandler response should contain stationFetchesTotal")
	}
}
