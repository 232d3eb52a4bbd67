// Package nvstate holds the scheduler state that must survive deep sleep:
// the sleep interval override and the pause flag, both set by radio
// downlinks.
//
// All reads and writes go through explicit calls; nothing is cached, so a
// value written just before deep sleep is what the next process sees.
package nvstate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/nvstore"
)

// Keys in the non-volatile store.
const (
	KeyIntervalOverride = "sleep_interval_override"
	KeyPaused           = "paused"
)

// ErrNegativeInterval is returned for a negative override.
var ErrNegativeInterval = errors.New("nvstate: negative interval override")

// Snapshot is the persistent scheduler state at one point in time.
type Snapshot struct {
	// IntervalOverride replaces the configured field interval when HasOverride is set.
	IntervalOverride time.Duration
	HasOverride      bool

	Paused bool
}

// State reads and writes persistent scheduler state.
type State struct {
	store nvstore.Store
}

// New creates a State over store.
func New(store nvstore.Store) *State {
	return &State{store: store}
}

// Load reads the full snapshot.
func (s *State) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	d, ok, err := s.IntervalOverride(ctx)
	if err != nil {
		return snap, err
	}
	snap.IntervalOverride, snap.HasOverride = d, ok

	if snap.Paused, err = s.Paused(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// IntervalOverride returns the stored override and whether one is set.
func (s *State) IntervalOverride(ctx context.Context) (time.Duration, bool, error) {
	raw, ok, err := s.store.Get(ctx, KeyIntervalOverride)
	if err != nil || !ok {
		return 0, false, err
	}
	minutes, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || minutes <= 0 || minutes > math.MaxInt64/int64(time.Minute) {
		// A corrupt, zero or out of range value behaves as "no override".
		return 0, false, nil
	}
	return time.Duration(minutes) * time.Minute, true, nil
}

// SetIntervalOverride stores an override in minutes. Zero clears it.
func (s *State) SetIntervalOverride(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return ErrNegativeInterval
	}
	if minutes == 0 {
		return s.ClearIntervalOverride(ctx)
	}
	if err := s.store.Set(ctx, KeyIntervalOverride, strconv.Itoa(minutes)); err != nil {
		return fmt.Errorf("storing interval override: %w", err)
	}
	return s.store.Sync(ctx)
}

// ClearIntervalOverride removes the override so the configured interval applies.
func (s *State) ClearIntervalOverride(ctx context.Context) error {
	if err := s.store.Erase(ctx, KeyIntervalOverride); err != nil {
		return fmt.Errorf("clearing interval override: %w", err)
	}
	return s.store.Sync(ctx)
}

// Paused reports whether uplinks should carry the pause acknowledgement.
func (s *State) Paused(ctx context.Context) (bool, error) {
	raw, ok, err := s.store.Get(ctx, KeyPaused)
	if err != nil || !ok {
		return false, err
	}
	return raw == "1", nil
}

// SetPaused stores the pause flag.
func (s *State) SetPaused(ctx context.Context, paused bool) error {
	value := "0"
	if paused {
		value = "1"
	}
	if err := s.store.Set(ctx, KeyPaused, value); err != nil {
		return fmt.Errorf("storing pause flag: %w", err)
	}
	return s.store.Sync(ctx)
}
