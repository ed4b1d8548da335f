package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestServerLifecycle(t *testing.T) {
	s := NewServer(Handlers{pingHandler{}, nil},
		WithPort(0),
		WithMetricsPath(""),
		WithRateLimiter(denyAll{}),
	)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	base := "http://" + s.Addr().String()

	// health is exempt from the limiter
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(base + "/api/anything")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("limited route = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestServerStartFailsOnTakenPort(t *testing.T) {
	a := NewServer(nil, WithPort(0), WithMetricsPath(""))
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background())

	b := NewServer(nil, WithPort(a.Addr().(*net.TCPAddr).Port), WithMetricsPath(""))
	if err := b.Start(); err == nil {
		_ = b.Stop(context.Background())
		t.Fatal("expected bind error")
	}
}
