package connectivity

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

// Radio defaults.
const (
	defaultReceiveTimeout = 10 * time.Second
	commandTimeout        = 5 * time.Second

	// DefaultUplinkPort is the LoRaWAN FPort data uplinks are sent on.
	DefaultUplinkPort = 1

	radioLineBuffer = 16
)

// ATRadio drives an AT-command LoRaWAN module (RAK3172 dialect):
//
//	-> AT+SEND=<port>:<hex payload>
//	<- OK
//	<- +EVT:RX_1:<rssi>:<snr>:UNICAST:<port>:<hex payload>   (downlink)
//	<- +EVT:TX_DONE                                          (no downlink)
//
// Error responses are "AT_ERROR", "AT_BUSY_ERROR", "AT_NO_NETWORK_JOINED"
// and similar lines starting with "AT_".
type ATRadio struct {
	port           io.ReadWriteCloser
	lines          chan string
	readErr        chan error
	uplinkPort     int
	receiveTimeout time.Duration

	mu sync.Mutex
}

// OpenRadio opens the serial device and configures it for the module.
func OpenRadio(cfg config.RadioConfig) (*ATRadio, error) {
	f, err := os.OpenFile(cfg.Device, os.O_RDWR|syscallNoCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrRadio, cfg.Device, err)
	}
	if err := configureSerial(f); err != nil {
		f.Close() //nolint:errcheck // Error path
		return nil, fmt.Errorf("%w: configuring %s: %w", ErrRadio, cfg.Device, err)
	}
	return NewATRadio(f, time.Duration(cfg.ReceiveTimeout)*time.Second), nil
}

// NewATRadio drives a module over port. A reader goroutine runs until the
// port is closed.
func NewATRadio(port io.ReadWriteCloser, receiveTimeout time.Duration) *ATRadio {
	if receiveTimeout <= 0 {
		receiveTimeout = defaultReceiveTimeout
	}
	r := &ATRadio{
		port:           port,
		lines:          make(chan string, radioLineBuffer),
		readErr:        make(chan error, 1),
		uplinkPort:     DefaultUplinkPort,
		receiveTimeout: receiveTimeout,
	}
	go r.readLoop()
	return r
}

func (r *ATRadio) readLoop() {
	scanner := bufio.NewScanner(r.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			r.lines <- line
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	r.readErr <- err
	close(r.lines)
}

// Send implements transport.Radio.
func (r *ATRadio) Send(ctx context.Context, payload []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drain()

	cmd := fmt.Sprintf("AT+SEND=%d:%s\r\n", r.uplinkPort, strings.ToUpper(hex.EncodeToString(payload)))
	if _, err := io.WriteString(r.port, cmd); err != nil {
		return 0, fmt.Errorf("%w: writing command: %w", ErrRadio, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	for {
		line, err := r.next(ctx)
		if err != nil {
			return 0, err
		}
		switch {
		case line == "OK":
			return len(payload), nil
		case strings.HasPrefix(line, "AT_"):
			return 0, fmt.Errorf("%w: %s", ErrRadio, line)
		}
	}
}

// Receive implements transport.Radio. It waits for the end of the
// receive windows of the last uplink.
func (r *ATRadio) Receive(ctx context.Context) ([]byte, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.receiveTimeout)
	defer cancel()
	for {
		line, err := r.next(ctx)
		if err != nil {
			return nil, 0, err
		}
		switch {
		case strings.HasPrefix(line, "+EVT:RX_"):
			return parseDownlink(line)
		case line == "+EVT:TX_DONE", line == "+EVT:SEND_CONFIRMED_OK":
			return nil, 0, nil
		case strings.HasPrefix(line, "+EVT:SEND_CONFIRMED_FAILED"):
			return nil, 0, fmt.Errorf("%w: %s", ErrRadio, line)
		}
	}
}

// Close closes the serial port.
func (r *ATRadio) Close() error {
	return r.port.Close()
}

func (r *ATRadio) next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-r.lines:
		if !ok {
			return "", fmt.Errorf("%w: port closed", ErrRadio)
		}
		return line, nil
	case err := <-r.readErr:
		r.readErr <- err
		return "", fmt.Errorf("%w: %w", ErrRadio, err)
	case <-ctx.Done():
		return "", ErrRadioTimeout
	}
}

// drain discards unsolicited lines left from a previous exchange.
func (r *ATRadio) drain() {
	for {
		select {
		case _, ok := <-r.lines:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// parseDownlink parses "+EVT:RX_1:-70:8:UNICAST:2:01". The last two
// fields are the port and the hex payload.
func parseDownlink(line string) ([]byte, int, error) {
	fields := strings.Split(line, ":")
	if len(fields) < 3 {
		return nil, 0, fmt.Errorf("%w: malformed downlink %q", ErrRadio, line)
	}
	port, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: downlink port in %q", ErrRadio, line)
	}
	payload, err := hex.DecodeString(fields[len(fields)-1])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: downlink payload in %q", ErrRadio, line)
	}
	return payload, port, nil
}
