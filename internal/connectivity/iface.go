package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/process"
)

const (
	defaultLinkTimeout = 30 * time.Second
	linkPollInterval   = 500 * time.Millisecond
)

// linkState is what Ensure needs to know about an interface.
type linkState struct {
	up      bool
	hasAddr bool
}

// Interface is a kernel network interface medium.
type Interface struct {
	name    string
	iface   string
	up      []string
	down    []string
	timeout time.Duration
	daemon  *process.Manager

	lookup func(iface string) (linkState, error)
	run    func(ctx context.Context, argv []string) error
}

// NewInterface creates an interface medium.
func NewInterface(cfg config.MediumConfig) *Interface {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultLinkTimeout
	}
	i := &Interface{
		name:    cfg.Name,
		iface:   cfg.Interface,
		up:      cfg.Up,
		down:    cfg.Down,
		timeout: timeout,
		lookup:  lookupLink,
		run:     runCommand,
	}
	if len(cfg.Daemon) > 0 {
		i.daemon = process.NewManager(process.Config{
			Name:             cfg.Name,
			Argv:             cfg.Daemon,
			RestartOnFailure: true,
		})
	}
	return i
}

// SetLogger sets the logger used by the link daemon, if any.
func (i *Interface) SetLogger(logger process.Logger) {
	if i.daemon != nil {
		i.daemon.SetLogger(logger)
	}
}

// Daemon returns the link daemon supervisor, or nil when none is configured.
func (i *Interface) Daemon() *process.Manager { return i.daemon }

// Name implements Medium.
func (i *Interface) Name() string { return i.name }

// InterfaceName returns the kernel interface name.
func (i *Interface) InterfaceName() string { return i.iface }

// Ensure implements Medium. When the link is down the link daemon is
// started (or the up command runs once), then the link is polled until it
// is up with an address.
func (i *Interface) Ensure(ctx context.Context) error {
	if st, err := i.lookup(i.iface); err == nil && st.up && st.hasAddr {
		return nil
	}

	switch {
	case i.daemon != nil:
		if !i.daemon.IsRunning() {
			if err := i.daemon.Start(ctx); err != nil && !errors.Is(err, process.ErrAlreadyRunning) {
				return fmt.Errorf("starting %s link daemon: %w", i.iface, err)
			}
		}
	case len(i.up) > 0:
		if err := i.run(ctx, i.up); err != nil {
			return fmt.Errorf("bringing %s up: %w", i.iface, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	ticker := time.NewTicker(linkPollInterval)
	defer ticker.Stop()

	// nil without a daemon, which never fires.
	var exited <-chan struct{}
	if i.daemon != nil {
		exited = i.daemon.Done()
	}

	for {
		st, err := i.lookup(i.iface)
		if err == nil && st.up && st.hasAddr {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrLinkDown, i.iface, err)
			}
			return fmt.Errorf("%w: %s", ErrLinkDown, i.iface)
		case <-exited:
			return fmt.Errorf("%w: %s: link daemon exited: %s", ErrLinkDown, i.iface, i.daemon.Stats().LastError)
		case <-ticker.C:
		}
	}
}

// Teardown implements Medium. The link daemon is stopped before the down
// command runs.
func (i *Interface) Teardown(ctx context.Context) error {
	if i.daemon != nil {
		if err := i.daemon.Stop(); err != nil {
			return fmt.Errorf("stopping %s link daemon: %w", i.iface, err)
		}
	}
	if len(i.down) == 0 {
		return nil
	}
	if err := i.run(ctx, i.down); err != nil {
		return fmt.Errorf("bringing %s down: %w", i.iface, err)
	}
	return nil
}

func lookupLink(name string) (linkState, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return linkState{}, fmt.Errorf("%w: %s", ErrNoSuchInterface, name)
	}
	st := linkState{up: ifi.Flags&net.FlagUp != 0}
	addrs, err := ifi.Addrs()
	if err != nil {
		return st, err
	}
	st.hasAddr = len(addrs) > 0
	return st, nil
}

func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, out)
	}
	return nil
}
