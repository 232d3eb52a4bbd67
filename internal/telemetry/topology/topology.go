// Package topology builds the per-target part of a delivery URI and
// transforms the inbound field mapping into the outbound one.
//
// A topology contributes a path template such as
// "{realm}/{network}/{gateway}/{node}", expanded against the target's
// address components, and an Encode hook. The built-ins are:
//
//	mqttkit      identity, template {realm}/{network}/{gateway}/{node}
//	passthrough  identity, empty template
//	fieldmap     rename/filter through a name table, optional constant id field
//	script       JavaScript transform(data) function
package topology

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// Topology names.
const (
	NameMQTTKit     = "mqttkit"
	NamePassthrough = "passthrough"
	NameFieldMap    = "fieldmap"
	NameScript      = "script"
)

// MQTTKitTemplate is the default four-level address template.
const MQTTKitTemplate = "{realm}/{network}/{gateway}/{node}"

var (
	// ErrUnknownTopology is returned by Lookup for an unknown name.
	ErrUnknownTopology = errors.New("topology: unknown topology")

	// ErrMissingAddress is returned when a template placeholder has no
	// address component.
	ErrMissingAddress = errors.New("topology: missing address component")

	// ErrInvalidSettings is returned for malformed topology settings.
	ErrInvalidSettings = errors.New("topology: invalid settings")

	// ErrScript wraps JavaScript evaluation failures.
	ErrScript = errors.New("topology: script failed")
)

// Topology is one target's URI shape and field transform.
type Topology interface {
	Name() string

	// Template returns the path template appended to the target endpoint.
	Template() string

	// Encode produces the outbound mapping. It must not modify in.
	Encode(in reading.Fields) (reading.Fields, error)
}

// Settings is a topology's free-form configuration.
type Settings map[string]any

func (s Settings) string(key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}

// Lookup builds the topology called name. An empty name means mqttkit.
func Lookup(name string, settings Settings) (Topology, error) {
	if settings == nil {
		settings = Settings{}
	}
	switch strings.ToLower(name) {
	case "", NameMQTTKit:
		return identity{name: NameMQTTKit, template: settings.string("template", MQTTKitTemplate)}, nil
	case NamePassthrough:
		return identity{name: NamePassthrough, template: settings.string("template", "")}, nil
	case NameFieldMap:
		return NewFieldMap(settings)
	case NameScript:
		return NewScript(settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopology, name)
	}
}

// identity copies inbound to outbound unchanged.
type identity struct {
	name     string
	template string
}

func (t identity) Name() string     { return t.name }
func (t identity) Template() string { return t.template }

func (identity) Encode(in reading.Fields) (reading.Fields, error) {
	return in.Clone(), nil
}

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// ExpandTemplate substitutes every {name} in template with address[name].
// Empty values count as missing.
//
// Example:
//
//	ExpandTemplate("{realm}/{node}", map[string]string{"realm": "mqttkit-1", "node": "node-01"})
//	// "mqttkit-1/node-01"
func ExpandTemplate(template string, address map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v := address[key]
		if v == "" {
			missing = append(missing, key)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingAddress, strings.Join(missing, ", "))
	}
	return out, nil
}
