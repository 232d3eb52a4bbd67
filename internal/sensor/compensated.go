package sensor

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TypeCompensated corrects another sensor's output for temperature drift.
const TypeCompensated = "compensated"

const familyComposite = "composite"

// Compensated composes a base sensor with a temperature source, both
// resolved by id when started and read through the registry.
//
// For every base field f it emits f unchanged and
// f.compensated = v - coefficient * (T - reference).
type Compensated struct {
	base
	lookup func(id string) (Sensor, bool)
	read   func(ctx context.Context, id string) (Result, bool)

	baseID      string
	tempID      string
	tempField   string
	coefficient float64
	reference   float64

	resolved bool
}

// NewCompensated is the Factory for compensated.
// Settings: base and temperature (sensor ids, required), temperature_field
// (default: the first field containing "temperature"), coefficient,
// reference (default 20).
func NewCompensated(spec Spec) (Sensor, error) {
	baseID := spec.Settings.String("base", "")
	tempID := spec.Settings.String("temperature", "")
	if baseID == "" || tempID == "" {
		return nil, fmt.Errorf("%w: base and temperature are required", ErrInvalidSettings)
	}
	if spec.Lookup == nil || spec.Read == nil {
		return nil, fmt.Errorf("%w: no sensor lookup", ErrInvalidSettings)
	}
	return &Compensated{
		base:        base{id: spec.ID, typ: TypeCompensated, family: familyComposite},
		lookup:      spec.Lookup,
		read:        spec.Read,
		baseID:      baseID,
		tempID:      tempID,
		tempField:   spec.Settings.String("temperature_field", ""),
		coefficient: spec.Settings.Float("coefficient", 0),
		reference:   spec.Settings.Float("reference", 20),
	}, nil
}

// Start checks that both companions are registered.
func (s *Compensated) Start(context.Context) error {
	if _, ok := s.lookup(s.baseID); !ok {
		return fmt.Errorf("%w: base sensor %s", ErrNoDevice, s.baseID)
	}
	if _, ok := s.lookup(s.tempID); !ok {
		return fmt.Errorf("%w: temperature sensor %s", ErrNoDevice, s.tempID)
	}
	s.resolved = true
	return nil
}

// Read implements Sensor. A companion that is not initialized yields
// ErrNotInitialized.
func (s *Compensated) Read(ctx context.Context) (Values, error) {
	if !s.resolved {
		return nil, fmt.Errorf("%w: companions not resolved", ErrNoDevice)
	}

	values, err := s.companion(ctx, s.baseID)
	if err != nil {
		return nil, fmt.Errorf("base %s: %w", s.baseID, err)
	}
	temps, err := s.companion(ctx, s.tempID)
	if err != nil {
		return nil, fmt.Errorf("temperature %s: %w", s.tempID, err)
	}
	t, ok := s.pickTemperature(temps)
	if !ok {
		return nil, fmt.Errorf("%w: no temperature from %s", ErrNoDevice, s.tempID)
	}

	out := make(Values, 2*len(values))
	for f, v := range values {
		out[f] = v
		out[f+".compensated"] = v - s.coefficient*(t-s.reference)
	}
	return out, nil
}

func (s *Compensated) companion(ctx context.Context, id string) (Values, error) {
	res, ok := s.read(ctx, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, id)
	}
	switch res.Status {
	case StatusOK:
		return res.Values, nil
	case StatusNotInitialized:
		return nil, ErrNotInitialized
	default:
		return nil, res.Err
	}
}

func (s *Compensated) pickTemperature(values Values) (float64, bool) {
	if s.tempField != "" {
		v, ok := values[s.tempField]
		return v, ok
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.Contains(k, "temperature") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, false
	}
	sort.Strings(keys)
	return values[keys[0]], true
}
