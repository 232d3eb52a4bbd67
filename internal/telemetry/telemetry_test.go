package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/mqtt"
	"github.com/nerrad567/fieldlogger/internal/reading"
	"github.com/nerrad567/fieldlogger/internal/telemetry/codec"
	"github.com/nerrad567/fieldlogger/internal/telemetry/topology"
	"github.com/nerrad567/fieldlogger/internal/telemetry/transport"
)

// fakeBroker is a shared in-memory MQTT connection.
type fakeBroker struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	fail     error
	dials    int
}

func (b *fakeBroker) dial(mqtt.Broker) (transport.Publisher, error) {
	b.mu.Lock()
	b.dials++
	b.mu.Unlock()
	return b, nil
}

func (b *fakeBroker) Publish(_ context.Context, topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *fakeBroker) IsConnected() bool { return true }
func (b *fakeBroker) MarkDisconnected() {}
func (b *fakeBroker) Close() error      { return nil }

type countingFeeder struct{ feeds int }

func (f *countingFeeder) Feed() error {
	f.feeds++
	return nil
}

// recordingLogger keeps messages per level.
type recordingLogger struct {
	mu     sync.Mutex
	levels []string
	msgs   []string
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	l.levels = append(l.levels, level)
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.msgs {
		if l.levels[i] == level && l.msgs[i] == msg {
			n++
		}
	}
	return n
}

var testAddress = map[string]string{
	"realm":   "mqttkit-1",
	"network": "testdrive",
	"gateway": "area-42",
	"node":    "node-01",
}

func testFrame() *reading.Frame {
	f := reading.NewFrame(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	f.Merge(reading.Reading{
		SensorID: "system",
		Values: map[string]float64{
			"system.memfree":     1000000,
			"system.temperature": 44.7053182608696,
		},
	})
	return f
}

func mqttDeps(b *fakeBroker, logger Logger) Deps {
	return Deps{
		Pool:   transport.NewPool(transport.Deps{Brokers: transport.NewBrokerPool(b.dial)}),
		Logger: logger,
	}
}

func TestAdapter_FieldMapOverMQTT(t *testing.T) {
	b := &fakeBroker{}
	a, err := NewAdapter(config.TargetConfig{
		ID:       "hiveeyes",
		Enabled:  true,
		Endpoint: "mqtt://broker.example.org",
		Address:  testAddress,
		Topology: topology.NameFieldMap,
		Format:   codec.FormatJSON,
	}, mqttDeps(b, nil))
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	frame := testFrame()
	if !a.Transmit(context.Background(), frame) {
		t.Fatal("Transmit() = false")
	}

	if len(b.topics) != 1 || b.topics[0] != "mqttkit-1/testdrive/area-42/node-01/data.json" {
		t.Fatalf("topics = %v", b.topics)
	}

	var got map[string]float64
	if err := json.Unmarshal(b.payloads[0], &got); err != nil {
		t.Fatalf("payload is not a JSON object: %v", err)
	}
	if len(got) != 2 || got["system.memfree"] != 1000000 || got["system.temperature"] != 44.7053182608696 {
		t.Errorf("payload = %v", got)
	}

	d, ok := frame.Delivery(a.Channel())
	if !ok {
		t.Fatal("delivery not recorded on the frame")
	}
	if string(d.Payload) != string(b.payloads[0]) || len(d.Outbound) != 2 {
		t.Errorf("delivery = %+v", d)
	}
}

func TestChannelURI(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		template string
		suffix   string
		want     string
		wantErr  bool
	}{
		{"mqttkit http", "http://h/api/", topology.MQTTKitTemplate, "/data", "http://h/api/mqttkit-1/testdrive/area-42/node-01/data", false},
		{"passthrough mqtt", "mqtt://h", "", "/data.json", "mqtt://h/data.json", false},
		{"lora no suffix", "lora://radio", "{node}", "", "lora://radio/node-01", false},
		{"missing component", "mqtt://h", "{realm}/{site}", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChannelURI(tt.endpoint, tt.template, testAddress, tt.suffix)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ChannelURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ChannelURI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdapter_ExtraFieldsAndEncoding(t *testing.T) {
	var body, ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body, ctype = string(b), r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a, err := NewAdapter(config.TargetConfig{
		Enabled:     true,
		Endpoint:    srv.URL,
		Address:     testAddress,
		Format:      codec.FormatURLEncoded,
		ExtraFields: map[string]any{"node": "area 42"},
	}, Deps{Pool: transport.NewPool(transport.Deps{})})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if !strings.HasSuffix(a.Channel(), "/mqttkit-1/testdrive/area-42/node-01/data") {
		t.Errorf("Channel() = %q", a.Channel())
	}

	frame := reading.NewFrame(time.Now())
	frame.Merge(reading.Reading{Values: map[string]float64{"system.memfree": 1000000, "system.voltage.battery": 3.72}})

	if !a.Transmit(context.Background(), frame) {
		t.Fatal("Transmit() = false")
	}
	if want := "node=area+42&system.memfree=1000000&system.voltage.battery=3.72"; body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
	if ctype != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", ctype)
	}
	if _, ok := frame.Inbound["node"]; ok {
		t.Error("extra fields leaked into the inbound mapping")
	}
}

func TestAdapter_Base64(t *testing.T) {
	b := &fakeBroker{}
	a, err := NewAdapter(config.TargetConfig{
		Enabled:  true,
		Endpoint: "mqtt://broker",
		Address:  testAddress,
		Format:   codec.FormatLPP,
		Encode:   "base64",
	}, mqttDeps(b, nil))
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	frame := reading.NewFrame(time.Now())
	frame.Merge(reading.Reading{Values: map[string]float64{"system.temperature": 44.7}})
	if !a.Transmit(context.Background(), frame) {
		t.Fatal("Transmit() = false")
	}
	if got := string(b.payloads[0]); got != "AGcBvw==" {
		t.Errorf("payload = %q, want AGcBvw==", got)
	}
	if !strings.HasSuffix(b.topics[0], "/data.lpp") {
		t.Errorf("topic = %q", b.topics[0])
	}
}

func TestAdapter_FailureCounter(t *testing.T) {
	b := &fakeBroker{fail: errors.New("broker said no")}
	logger := &recordingLogger{}
	feeder := &countingFeeder{}
	deps := mqttDeps(b, logger)
	deps.Watchdog = feeder

	a, err := NewAdapter(config.TargetConfig{Enabled: true, Endpoint: "mqtt://broker", Address: testAddress}, deps)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		if a.Transmit(context.Background(), testFrame()) {
			t.Fatalf("Transmit() #%d succeeded", i)
		}
		if a.Failures() != i {
			t.Errorf("Failures() = %d, want %d", a.Failures(), i)
		}
	}
	if n := logger.count("error", "telemetry transmit failed"); n != 1 {
		t.Errorf("error logs = %d, want 1", n)
	}
	if n := logger.count("warn", "telemetry transmit failed again"); n != 2 {
		t.Errorf("warn logs = %d, want 2", n)
	}

	b.fail = nil
	if !a.Transmit(context.Background(), testFrame()) {
		t.Fatal("Transmit() after recovery = false")
	}
	if a.Failures() != 0 {
		t.Errorf("Failures() = %d after success, want 0", a.Failures())
	}
	if feeder.feeds != 4 {
		t.Errorf("watchdog fed %d times, want 4", feeder.feeds)
	}
}

func TestAdapter_Offline(t *testing.T) {
	b := &fakeBroker{}
	logger := &recordingLogger{}
	a, _ := NewAdapter(config.TargetConfig{Enabled: true, Endpoint: "mqtt://broker", Address: testAddress}, mqttDeps(b, logger))

	a.SetOffline(true)
	if a.Transmit(context.Background(), testFrame()) {
		t.Error("offline Transmit() = true")
	}
	if got := logger.count("warn", "adapter offline, skipping"); got != 1 {
		t.Errorf("offline skip logged %d warnings, want 1", got)
	}
	if b.dials != 0 {
		t.Error("offline adapter touched the transport")
	}
	if a.Failures() != 0 {
		t.Error("offline skip counted as failure")
	}

	a.SetOffline(false)
	if !a.Transmit(context.Background(), testFrame()) {
		t.Error("Transmit() after SetOffline(false) = false")
	}
}

func TestNewAdapter_Errors(t *testing.T) {
	pool := transport.NewPool(transport.Deps{})
	base := config.TargetConfig{Enabled: true, Endpoint: "http://h", Address: testAddress}

	tests := []struct {
		name    string
		mutate  func(*config.TargetConfig)
		deps    Deps
		wantErr error
	}{
		{"no endpoint", func(c *config.TargetConfig) { c.Endpoint = "" }, Deps{Pool: pool}, ErrNoEndpoint},
		{"no pool", func(*config.TargetConfig) {}, Deps{}, ErrNoTransport},
		{"unknown topology", func(c *config.TargetConfig) { c.Topology = "bogus" }, Deps{Pool: pool}, topology.ErrUnknownTopology},
		{"unknown format", func(c *config.TargetConfig) { c.Format = "xml" }, Deps{Pool: pool}, codec.ErrUnknownFormat},
		{"csv not implemented", func(c *config.TargetConfig) { c.Format = "csv" }, Deps{Pool: pool}, codec.ErrFormatNotImplemented},
		{"unknown encoding", func(c *config.TargetConfig) { c.Encode = "gzip" }, Deps{Pool: pool}, codec.ErrUnknownEncoding},
		{"unknown scheme", func(c *config.TargetConfig) { c.Endpoint = "ftp://h" }, Deps{Pool: pool}, transport.ErrUnsupportedScheme},
		{"missing address", func(c *config.TargetConfig) { c.Address = nil }, Deps{Pool: pool}, topology.ErrMissingAddress},
		{"no radio", func(c *config.TargetConfig) { c.Endpoint = "lora://radio" }, Deps{Pool: pool}, transport.ErrNoCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := NewAdapter(cfg, tt.deps); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewAdapter() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// panicTopology panics in Encode.
type panicTopology struct{}

func (panicTopology) Name() string     { return "panic" }
func (panicTopology) Template() string { return "" }
func (panicTopology) Encode(reading.Fields) (reading.Fields, error) {
	panic("boom")
}

func TestManager_Transmit(t *testing.T) {
	good := &fakeBroker{}
	logger := &recordingLogger{}
	deps := mqttDeps(good, logger)

	var httpHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpHits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewManager([]config.TargetConfig{
		{ID: "mqtt", Enabled: true, Endpoint: "mqtt://broker", Address: testAddress},
		{ID: "disabled", Enabled: false, Endpoint: "ftp://ignored"},
		{ID: "http", Enabled: true, Endpoint: srv.URL, Address: testAddress},
		{ID: "panics", Enabled: true, Endpoint: "mqtt://broker/panic", Topology: topology.NamePassthrough},
	}, deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if len(m.Adapters()) != 3 {
		t.Fatalf("adapters = %d, want 3", len(m.Adapters()))
	}
	m.adapters[2].topology = panicTopology{}

	var observed []string
	m.SetObserver(observerFunc(func(ch string, ok bool) {
		if ok {
			observed = append(observed, "ok")
		} else {
			observed = append(observed, "fail")
		}
	}))

	out := m.Transmit(context.Background(), testFrame())

	if out.Total() != 3 || out.Succeeded() != 1 || out.Failed() != 2 || out.AllSucceeded() {
		t.Errorf("outcome = %v (succeeded %d, failed %d)", out, out.Succeeded(), out.Failed())
	}
	if !out[m.adapters[0].Channel()] {
		t.Error("mqtt channel not successful")
	}
	if httpHits != 1 {
		t.Errorf("http target hit %d times", httpHits)
	}
	if len(observed) != 3 || observed[0] != "ok" || observed[1] != "fail" || observed[2] != "fail" {
		t.Errorf("observer saw %v", observed)
	}
	if logger.count("error", "telemetry adapter panicked") != 1 {
		t.Error("panic not logged")
	}
	if fc := out.FailedChannels(); len(fc) != 2 {
		t.Errorf("FailedChannels() = %v", fc)
	}
}

func TestManager_SetupErrorIsFatal(t *testing.T) {
	_, err := NewManager([]config.TargetConfig{
		{ID: "ok", Enabled: true, Endpoint: "http://h", Address: testAddress},
		{ID: "bad", Enabled: true, Endpoint: "http://h", Address: testAddress, Format: "csv"},
	}, Deps{Pool: transport.NewPool(transport.Deps{})})

	if !errors.Is(err, codec.ErrFormatNotImplemented) {
		t.Fatalf("NewManager() error = %v", err)
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error %q does not name the target", err)
	}
}

func TestOutcome_Empty(t *testing.T) {
	var o Outcome
	if o.Total() != 0 || !o.AllSucceeded() {
		t.Errorf("empty outcome: total %d all %v", o.Total(), o.AllSucceeded())
	}
}

type observerFunc func(channel string, ok bool)

func (f observerFunc) Transmitted(channel string, ok bool) { f(channel, ok) }
