package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

func TestInfluxDB_Send(t *testing.T) {
	var body, query, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			b, _ := io.ReadAll(r.Body)
			body, query, auth = string(b), r.URL.RawQuery, r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	uri := strings.Replace(srv.URL, "http://", "influxdb://", 1) + "/ignored/path"
	tr, err := NewInfluxDB(uri, Settings{"org": "field", "bucket": "loggers", "token": "secret"})
	if err != nil {
		t.Fatalf("NewInfluxDB() error = %v", err)
	}
	defer tr.Close() //nolint:errcheck // Test cleanup

	err = tr.Send(context.Background(), &Message{
		URI:    uri,
		Fields: reading.Fields{"system.temperature": 44.7},
		Tags:   map[string]string{"node": "node-01"},
		Time:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if want := "fieldlogger,node=node-01 system.temperature=44.7 1772355600000000000"; strings.TrimSpace(body) != want {
		t.Errorf("body = %q, want %q", body, want)
	}
	if !strings.Contains(query, "bucket=loggers") {
		t.Errorf("query = %q", query)
	}
	if auth != "Token secret" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestInfluxDB_WriteFailure(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			if !healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	uri := strings.Replace(srv.URL, "http://", "influxdb://", 1)
	tr, err := NewInfluxDB(uri, Settings{"org": "field", "bucket": "loggers"})
	if err != nil {
		t.Fatalf("NewInfluxDB() error = %v", err)
	}
	defer tr.Close() //nolint:errcheck // Test cleanup

	msg := &Message{URI: uri, Fields: reading.Fields{"v": 1.0}, Time: time.Now()}

	if err := tr.Send(context.Background(), msg); err == nil {
		t.Fatal("Send() error = nil, want write failure")
	}
	if tr.client == nil {
		t.Fatal("healthy server: client dropped after a rejected write")
	}

	healthy.Store(false)
	if err := tr.Send(context.Background(), msg); err == nil {
		t.Fatal("Send() error = nil, want write failure")
	}
	if tr.client != nil {
		t.Error("unhealthy server: client kept after a failed write")
	}
}

func TestInfluxDB_InvalidURI(t *testing.T) {
	if _, err := NewInfluxDB("influxdb://", nil); err == nil {
		t.Error("NewInfluxDB() accepted a URI without host")
	}
}
