package topology

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

var mqttkitAddress = map[string]string{
	"realm":   "mqttkit-1",
	"network": "testdrive",
	"gateway": "area-42",
	"node":    "node-01",
}

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		address  map[string]string
		want     string
		wantErr  bool
	}{
		{"mqttkit", MQTTKitTemplate, mqttkitAddress, "mqttkit-1/testdrive/area-42/node-01", false},
		{"empty", "", nil, "", false},
		{"literal text kept", "sites/{node}/up", mqttkitAddress, "sites/node-01/up", false},
		{"missing component", "{realm}/{site}", mqttkitAddress, "", true},
		{"empty component", "{node}", map[string]string{"node": ""}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandTemplate(tt.template, tt.address)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingAddress) {
					t.Fatalf("error = %v, want ErrMissingAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandTemplate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name         string
		wantName     string
		wantTemplate string
		wantErr      error
	}{
		{"", NameMQTTKit, MQTTKitTemplate, nil},
		{"mqttkit", NameMQTTKit, MQTTKitTemplate, nil},
		{"passthrough", NamePassthrough, "", nil},
		{"fieldmap", NameFieldMap, MQTTKitTemplate, nil},
		{"homie", "", "", ErrUnknownTopology},
		{"script", "", "", ErrInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, err := Lookup(tt.name, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lookup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if top.Name() != tt.wantName || top.Template() != tt.wantTemplate {
				t.Errorf("got %s %q, want %s %q", top.Name(), top.Template(), tt.wantName, tt.wantTemplate)
			}
		})
	}
}

func TestIdentity_DoesNotAlias(t *testing.T) {
	top, _ := Lookup(NamePassthrough, nil)
	in := reading.Fields{"a": 1.0}
	out, err := top.Encode(in)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out["b"] = 2.0
	if _, ok := in["b"]; ok {
		t.Error("Encode output aliases its input")
	}
}

func TestFieldMap(t *testing.T) {
	in := reading.Fields{
		"system.memfree":     1000000.0,
		"system.temperature": 44.7053182608696,
		"weight.hive1":       42.5,
	}

	tests := []struct {
		name     string
		settings Settings
		want     reading.Fields
	}{
		{
			name:     "no table is identity",
			settings: Settings{},
			want:     in,
		},
		{
			name: "rename keeps unmapped",
			settings: Settings{
				"fields": map[string]any{"system.temperature": "temp"},
			},
			want: reading.Fields{"system.memfree": 1000000.0, "temp": 44.7053182608696, "weight.hive1": 42.5},
		},
		{
			name: "strict with id field",
			settings: Settings{
				"fields":   map[string]any{"weight.hive1": "w1"},
				"strict":   true,
				"id_field": "hive",
				"id_value": "apiary-3",
			},
			want: reading.Fields{"w1": 42.5, "hive": "apiary-3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, err := NewFieldMap(tt.settings)
			if err != nil {
				t.Fatalf("NewFieldMap() error = %v", err)
			}
			got, err := top.Encode(in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldMap_InvalidSettings(t *testing.T) {
	for name, settings := range map[string]Settings{
		"strict not bool":  {"strict": "yes"},
		"fields not map":   {"fields": []any{"a"}},
		"empty target":     {"fields": map[string]any{"a": ""}},
		"id without value": {"id_field": "id"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewFieldMap(settings); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("error = %v, want ErrInvalidSettings", err)
			}
		})
	}
}

func TestScript(t *testing.T) {
	top, err := Lookup(NameScript, Settings{
		"template": "{node}",
		"source": `
			function transform(data) {
				var out = {};
				out.tempF = data["system.temperature"] * 9 / 5 + 32;
				out.node = "n1";
				return out;
			}`,
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if top.Template() != "{node}" {
		t.Errorf("Template() = %q", top.Template())
	}

	in := reading.Fields{"system.temperature": 21.5}
	out, err := top.Encode(in)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got, _ := reading.ToFloat(out["tempF"]); math.Abs(got-70.7) > 1e-9 {
		t.Errorf("tempF = %v, want 70.7", out["tempF"])
	}
	if out["node"] != "n1" {
		t.Errorf("node = %v", out["node"])
	}
	if len(in) != 1 {
		t.Error("script modified the inbound mapping")
	}
}

func TestScript_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.js")
	if err := os.WriteFile(path, []byte(`function transform(d) { d.extra = "x"; return d; }`), 0o600); err != nil {
		t.Fatal(err)
	}
	top, err := NewScript(Settings{"source_file": path})
	if err != nil {
		t.Fatalf("NewScript() error = %v", err)
	}
	out, err := top.Encode(reading.Fields{"a": 1.5})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if out["extra"] != "x" || out["a"] != 1.5 {
		t.Errorf("Encode() = %v", out)
	}
}

func TestScript_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"syntax error", "function transform( {"},
		{"no transform", "var x = 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScript(Settings{"source": tt.source}); !errors.Is(err, ErrScript) {
				t.Errorf("NewScript() error = %v, want ErrScript", err)
			}
		})
	}

	t.Run("throws", func(t *testing.T) {
		top, err := NewScript(Settings{"source": `function transform(d) { throw new Error("bad"); }`})
		if err != nil {
			t.Fatalf("NewScript() error = %v", err)
		}
		if _, err := top.Encode(reading.Fields{}); !errors.Is(err, ErrScript) {
			t.Errorf("Encode() error = %v, want ErrScript", err)
		}
	})

	t.Run("returns non-object", func(t *testing.T) {
		top, _ := NewScript(Settings{"source": `function transform(d) { return 3; }`})
		if _, err := top.Encode(reading.Fields{}); !errors.Is(err, ErrScript) {
			t.Errorf("Encode() error = %v, want ErrScript", err)
		}
	})
}
