package httpd

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	logx "tickd/pkg/logx"
)

func startTestService(t *testing.T, cfg Config, healthy func() bool) (*Service, string) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "tickd_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := New(cfg, reg, healthy, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s, "http://" + s.Addr()
}

func get(t *testing.T, url string, header map[string]string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestServesMetricsAndHealth(t *testing.T) {
	t.Parallel()
	healthy := true
	_, base := startTestService(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, func() bool { return healthy })

	code, body := get(t, base+"/metrics", nil)
	if code != http.StatusOK || !strings.Contains(body, "tickd_test_total 1") {
		t.Fatalf("/metrics = %d %q", code, body)
	}
	if code, _ := get(t, base+"/healthz", nil); code != http.StatusOK {
		t.Fatalf("/healthz = %d", code)
	}
	if code, _ := get(t, base+"/debug/pprof/", nil); code != http.StatusNotFound {
		t.Fatalf("pprof served while disabled: %d", code)
	}
}

func TestTokenAndPprof(t *testing.T) {
	t.Parallel()
	_, base := startTestService(t, Config{
		Enabled:     true,
		Addr:        "127.0.0.1:0",
		MetricsPath: "stats",
		Pprof:       true,
		Token:       "s3cret",
	}, nil)

	if code, _ := get(t, base+"/stats", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", code)
	}
	if code, _ := get(t, base+"/stats?token=wrong", nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d, want 401", code)
	}
	if code, _ := get(t, base+"/stats", map[string]string{"Authorization": "Bearer s3cret"}); code != http.StatusOK {
		t.Fatalf("bearer token = %d, want 200", code)
	}
	if code, _ := get(t, base+"/debug/pprof/cmdline?token=s3cret", nil); code != http.StatusOK {
		t.Fatalf("pprof = %d, want 200", code)
	}
}

func TestReconfigureStopsServer(t *testing.T) {
	t.Parallel()
	s, _ := startTestService(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Reconfigure(ctx, Config{Enabled: false})
	if addr := s.Addr(); addr != "" {
		t.Fatalf("still serving on %s", addr)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:80":   true,
		"[::1]:80":       true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"10.0.0.1:9464":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
