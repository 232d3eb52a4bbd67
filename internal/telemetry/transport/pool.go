package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Deps are the shared resources transports are built from. Capabilities
// a configuration does not use may be nil.
type Deps struct {
	Brokers    *BrokerPool
	NATS       *NATSPool
	HTTPClient *http.Client
	Modem      Modem
	Radio      Radio
	State      SchedulerState
	Logger     Logger
}

// Pool caches one Transport per full URI.
//
// Thread Safety: all methods are safe for concurrent use.
type Pool struct {
	deps Deps

	mu         sync.Mutex
	transports map[string]Transport
}

// NewPool creates a pool.
func NewPool(deps Deps) *Pool {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Pool{deps: deps, transports: make(map[string]Transport)}
}

// Get returns the transport for uri, creating it on first use.
//
// Parameters:
//   - uri: Full target URI; its scheme selects the transport
//   - via: "" or "modem" for request/response targets
//   - settings: Target settings (timeout, influx credentials)
//
// Returns:
//   - Transport: cached per uri and via
//   - error: ErrUnsupportedScheme, ErrInvalidURI or ErrNoCapability
func (p *Pool) Get(uri, via string, settings Settings) (Transport, error) {
	key := uri
	if via != "" {
		key = via + "|" + uri
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.transports[key]; ok {
		return t, nil
	}

	t, err := p.build(uri, via, settings)
	if err != nil {
		return nil, err
	}
	p.transports[key] = t
	return t, nil
}

func (p *Pool) build(uri, via string, settings Settings) (Transport, error) {
	scheme, err := Scheme(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, uri)
	}

	switch scheme {
	case SchemeHTTP, SchemeHTTPS:
		if via == ViaModem {
			return NewModemHTTP(p.deps.Modem)
		}
		if via != "" {
			return nil, fmt.Errorf("%w: via %q", ErrNoCapability, via)
		}
		timeout := time.Duration(settings.int("timeout", 0)) * time.Second
		client := p.deps.HTTPClient
		if timeout > 0 {
			client = nil
		}
		return NewHTTP(client, timeout), nil

	case SchemeMQTT, SchemeMQTTS:
		if p.deps.Brokers == nil {
			return nil, fmt.Errorf("%w: mqtt broker pool", ErrNoCapability)
		}
		return NewMQTT(uri, p.deps.Brokers, p.deps.Logger)

	case SchemeNATS:
		if p.deps.NATS == nil {
			return nil, fmt.Errorf("%w: nats pool", ErrNoCapability)
		}
		return NewNATS(uri, p.deps.NATS)

	case SchemeLoRa:
		return NewLoRa(p.deps.Radio, p.deps.State, p.deps.Logger)

	case SchemeInfluxDB, SchemeInfluxDBS:
		return NewInfluxDB(uri, settings)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// Len returns the number of cached transports.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transports)
}

// Close closes every transport and the shared broker pools.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, t := range p.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(p.transports, key)
	}
	if p.deps.Brokers != nil {
		if err := p.deps.Brokers.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.deps.NATS != nil {
		if err := p.deps.NATS.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
