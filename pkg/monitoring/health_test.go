package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: "healthy"} })
	status := hc.CheckHealth()
	if status.Status != "healthy" {
		t.Fatalf("expected healthy")
	}
}

func TestHealthChecker_UnhealthyWins(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: "healthy"} })
	hc.AddCheck("bad", func() CheckResult { return CheckResult{Status: "unhealthy"} })
	status := hc.CheckHealth()
	if status.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %q", status.Status)
	}
}

func TestHTTPServiceHealthCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer s.Close()
	res := HTTPServiceHealthCheck("svc", s.URL)()
	if res.Status != "healthy" {
		t.Fatalf("expected healthy")
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "postgres://x"})()
	if res.Status != "healthy" {
		t.Fatalf("expected healthy")
	}
	res = ConfigurationHealthCheck(map[string]string{"DATABASE_URL": ""})()
	if res.Status != "unhealthy" {
		t.Fatalf("expected unhealthy for missing config, got %q", res.Status)
	}
}
