package transport

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Downlink ports.
const (
	PortInterval = 1
	PortPause    = 2
)

var (
	// StatusTrailer is appended to every data uplink.
	StatusTrailer = []byte{0x00, 0x00, 0x00}

	// PauseAck replaces the uplink while the logger is paused.
	PauseAck = []byte{0x50}
)

// maxIntervalBytes bounds a port 1 downlink (a 32-bit minute count).
const maxIntervalBytes = 4

// maxIntervalMinutes is the largest override that fits a time.Duration.
const maxIntervalMinutes = math.MaxInt64 / int64(time.Minute)

// Radio is the capability of a LoRaWAN-class radio.
type Radio interface {
	// Send transmits payload and returns the number of bytes sent.
	Send(ctx context.Context, payload []byte) (int, error)

	// Receive blocks for one downlink. A nil payload means none arrived.
	Receive(ctx context.Context) (payload []byte, port int, err error)
}

// SchedulerState is the persistent state a downlink can change.
// *nvstate.State satisfies it.
type SchedulerState interface {
	SetIntervalOverride(ctx context.Context, minutes int) error
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}

// LoRa sends radio uplinks and applies the downlink that may follow.
type LoRa struct {
	radio  Radio
	state  SchedulerState
	logger Logger
}

// NewLoRa creates a LoRa transport.
func NewLoRa(radio Radio, state SchedulerState, logger Logger) (*LoRa, error) {
	if radio == nil {
		return nil, fmt.Errorf("%w: radio", ErrNoCapability)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: persistent state", ErrNoCapability)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &LoRa{radio: radio, state: state, logger: logger}, nil
}

// Send implements Transport.
func (l *LoRa) Send(ctx context.Context, msg *Message) error {
	uplink := l.uplink(ctx, msg.Payload)

	n, err := l.radio.Send(ctx, uplink)
	if err != nil {
		return fmt.Errorf("radio send: %w", err)
	}
	if n != len(uplink) {
		return fmt.Errorf("radio send: short write %d of %d bytes", n, len(uplink))
	}

	payload, port, err := l.radio.Receive(ctx)
	if err != nil {
		return fmt.Errorf("radio receive: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	return l.applyDownlink(ctx, payload, port)
}

// Close implements Transport.
func (l *LoRa) Close() error { return nil }

func (l *LoRa) uplink(ctx context.Context, payload []byte) []byte {
	paused, err := l.state.Paused(ctx)
	if err != nil {
		l.logger.Warn("reading pause flag failed, sending data", "error", err)
	}
	if paused {
		return append([]byte(nil), PauseAck...)
	}
	out := make([]byte, 0, len(payload)+len(StatusTrailer))
	out = append(out, payload...)
	return append(out, StatusTrailer...)
}

func (l *LoRa) applyDownlink(ctx context.Context, payload []byte, port int) error {
	switch port {
	case PortInterval:
		if len(payload) > maxIntervalBytes {
			return fmt.Errorf("%w: %d byte interval", ErrUnknownDownlink, len(payload))
		}
		minutes := 0
		for _, b := range payload {
			minutes = minutes<<8 | int(b)
		}
		if int64(minutes) > maxIntervalMinutes {
			return fmt.Errorf("%w: interval %d minutes out of range", ErrUnknownDownlink, minutes)
		}
		if err := l.state.SetIntervalOverride(ctx, minutes); err != nil {
			return err
		}
		l.logger.Info("downlink interval override", "minutes", minutes)
		return nil

	case PortPause:
		paused := false
		for _, b := range payload {
			if b != 0 {
				paused = true
			}
		}
		if err := l.state.SetPaused(ctx, paused); err != nil {
			return err
		}
		l.logger.Info("downlink pause flag", "paused", paused)
		return nil

	default:
		return fmt.Errorf("%w: port %d", ErrUnknownDownlink, port)
	}
}
