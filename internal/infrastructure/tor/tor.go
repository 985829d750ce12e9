// Package tor routes harvest traffic through the Tor network, either via an
// already running SOCKS5 port or via a daemon launched with tornago.
package tor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nao1215/tornago"

	"OnionHarvester/internal/infrastructure/proxy"
)

// ErrInvalidSocksAddress is returned for addresses that are not host:port.
var ErrInvalidSocksAddress = errors.New("invalid tor socks address: expected host:port")

// Options configure a Gateway.
type Options struct {
	// Embedded launches a private tor daemon instead of using SocksAddr.
	Embedded bool
	// SocksAddr of an external tor daemon, e.g. 127.0.0.1:9050.
	SocksAddr      string
	StartupTimeout time.Duration
}

// Gateway owns the SOCKS endpoint used for outbound requests.
type Gateway struct {
	opts    Options
	logger  *slog.Logger
	process *tornago.TorProcess
	addr    string
}

// NewGateway validates opts. Nothing is started until Start.
func NewGateway(opts Options, logger *slog.Logger) (*Gateway, error) {
	if !opts.Embedded && !validSocksAddress(opts.SocksAddr) {
		return nil, ErrInvalidSocksAddress
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 3 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{opts: opts, logger: logger.With("component", "tor")}, nil
}

// Start launches the embedded daemon when configured. Bootstrapping a fresh
// daemon takes minutes. For an external daemon Start only records the address.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.opts.Embedded {
		g.addr = g.opts.SocksAddr
		g.logger.Info("using external tor", "socksAddr", g.addr)
		return nil
	}
	if g.process != nil {
		return nil
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(g.opts.StartupTimeout),
	)
	if err != nil {
		return fmt.Errorf("create tor launch config: %w", err)
	}

	g.logger.Info("starting embedded tor daemon", "timeout", g.opts.StartupTimeout)
	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("start embedded tor daemon: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // startup was cancelled
		return err
	}

	g.process = process
	g.addr = process.SocksAddr()
	g.logger.Info("embedded tor daemon started", "socksAddr", g.addr)
	return nil
}

// SocksAddr returns the active SOCKS5 address, empty before Start.
func (g *Gateway) SocksAddr() string {
	return g.addr
}

// Transport returns an http.Transport dialing through the gateway.
func (g *Gateway) Transport() (*http.Transport, error) {
	if g.addr == "" {
		return nil, errors.New("tor gateway is not started")
	}
	return proxy.NewSOCKS5Transport(g.addr, nil)
}

// Stop shuts the embedded daemon down. It is safe to call more than once.
func (g *Gateway) Stop() error {
	if g.process == nil {
		return nil
	}
	err := g.process.Stop()
	g.process = nil
	g.addr = ""
	if err != nil {
		return fmt.Errorf("stop embedded tor daemon: %w", err)
	}
	return nil
}

func validSocksAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}
