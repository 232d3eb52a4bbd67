package topology

import (
	"fmt"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// FieldMap renames fields through a name table.
//
// Settings:
//
//	template: path template (default {realm}/{network}/{gateway}/{node})
//	fields:   map of inbound name to outbound name
//	strict:   drop fields not in the table (default false)
//	id_field: name of a constant identifier field to add
//	id_value: its value
type FieldMap struct {
	template string
	names    map[string]string
	strict   bool
	idField  string
	idValue  any
}

// NewFieldMap builds a fieldmap topology from settings.
func NewFieldMap(settings Settings) (*FieldMap, error) {
	t := &FieldMap{
		template: settings.string("template", MQTTKitTemplate),
		names:    make(map[string]string),
		idField:  settings.string("id_field", ""),
		idValue:  settings["id_value"],
	}

	if v, ok := settings["strict"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, fmt.Errorf("%w: strict must be a boolean", ErrInvalidSettings)
		}
		t.strict = b
	}

	switch table := settings["fields"].(type) {
	case nil:
	case map[string]any:
		for from, to := range table {
			name, ok := to.(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("%w: fields.%s must be a non-empty string", ErrInvalidSettings, from)
			}
			t.names[from] = name
		}
	case map[string]string:
		for from, to := range table {
			t.names[from] = to
		}
	default:
		return nil, fmt.Errorf("%w: fields must be a mapping", ErrInvalidSettings)
	}

	if t.idField != "" && t.idValue == nil {
		return nil, fmt.Errorf("%w: id_field %s has no id_value", ErrInvalidSettings, t.idField)
	}
	return t, nil
}

// Name implements Topology.
func (*FieldMap) Name() string { return NameFieldMap }

// Template implements Topology.
func (t *FieldMap) Template() string { return t.template }

// Encode implements Topology.
func (t *FieldMap) Encode(in reading.Fields) (reading.Fields, error) {
	out := make(reading.Fields, len(in)+1)
	for k, v := range in {
		if to, ok := t.names[k]; ok {
			out[to] = v
			continue
		}
		if !t.strict {
			out[k] = v
		}
	}
	if t.idField != "" {
		out[t.idField] = t.idValue
	}
	return out, nil
}
