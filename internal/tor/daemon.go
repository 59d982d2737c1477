package tor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tornago"
)

// ErrNotRunning is returned when the daemon address is requested before Start.
var ErrNotRunning = errors.New("tor daemon is not running")

// Daemon manages a Tor process.
type Daemon struct {
	// process is the running Tor daemon, nil when stopped.
	process *tornago.TorProcess

	// socksAddr is the SOCKS5 listener, set after a successful start.
	socksAddr string

	// startupTimeout is the maximum time to wait for Tor to bootstrap.
	startupTimeout time.Duration

	logger *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDaemon creates a stopped daemon.
func NewDaemon(opts ...Option) *Daemon {
	d := &Daemon{
		startupTimeout: 3 * time.Minute,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires.
func (d *Daemon) Start(ctx context.Context) error {
	if d.process != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create tor launch config: %w", err)
	}

	d.logger.Info("starting tor daemon, this may take a few minutes", "timeout", d.startupTimeout)
	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start tor daemon: %w", err)
	}

	// StartTorDaemon does not take a context.
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	d.logger.Info("tor daemon ready", "socks", d.socksAddr)
	return nil
}

// Stop shuts the daemon down. It is safe to call on a stopped daemon.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// Running reports whether the daemon has been started and not stopped.
func (d *Daemon) Running() bool {
	return d.process != nil
}

// SocksAddr returns the SOCKS5 address ("host:port") of the running daemon.
func (d *Daemon) SocksAddr() (string, error) {
	if d.process == nil {
		return "", ErrNotRunning
	}
	return d.socksAddr, nil
}
