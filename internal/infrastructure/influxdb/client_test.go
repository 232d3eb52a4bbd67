package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records /api/v2/write bodies.
type fakeInflux struct {
	mu          sync.Mutex
	writes      []string
	queries     []string
	writeStatus int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.queries = append(f.queries, r.URL.RawQuery)
		status := f.writeStatus
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusNoContent
		}
		if status != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"code":"invalid","message":"bad point"}`)
			return
		}
		w.WriteHeader(status)
	default:
		http.NotFound(w, r)
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := influxdb.Connect(context.Background(), influxdb.Options{
		URL:    srv.URL,
		Token:  "test-token",
		Org:    "field",
		Bucket: "loggers",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect(t *testing.T) {
	c := connect(t, &fakeInflux{})
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if c.Bucket() != "loggers" {
		t.Errorf("Bucket() = %q", c.Bucket())
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), influxdb.Options{URL: url})
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWritePoint(t *testing.T) {
	f := &fakeInflux{}
	c := connect(t, f)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := c.WritePoint(context.Background(), "fieldlogger",
		map[string]string{"node": "node-01"},
		map[string]any{"system.temperature": 44.7},
		at)
	if err != nil {
		t.Fatalf("WritePoint() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(f.writes))
	}
	want := "fieldlogger,node=node-01 system.temperature=44.7 1772355600000000000"
	if got := strings.TrimSpace(f.writes[0]); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !strings.Contains(f.queries[0], "bucket=loggers") || !strings.Contains(f.queries[0], "org=field") {
		t.Errorf("query = %q", f.queries[0])
	}
}

func TestWritePoint_Rejected(t *testing.T) {
	c := connect(t, &fakeInflux{writeStatus: http.StatusBadRequest})

	err := c.WritePoint(context.Background(), "m", nil, map[string]any{"v": 1.0}, time.Now())
	if !errors.Is(err, influxdb.ErrWriteFailed) {
		t.Errorf("WritePoint() error = %v, want ErrWriteFailed", err)
	}
}

func TestWritePoint_Validation(t *testing.T) {
	c := connect(t, &fakeInflux{})

	if err := c.WritePoint(context.Background(), "m", nil, nil, time.Now()); !errors.Is(err, influxdb.ErrNoFields) {
		t.Errorf("empty fields error = %v, want ErrNoFields", err)
	}

	_ = c.Close()
	err := c.WritePoint(context.Background(), "m", nil, map[string]any{"v": 1.0}, time.Now())
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("after Close error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c influxdb.Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
