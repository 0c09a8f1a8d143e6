package roundtrip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pwscan/pwscan-go/pkg/core"
	"github.com/pwscan/pwscan-go/pkg/discovery"
	"github.com/pwscan/pwscan-go/pkg/model"
	"github.com/pwscan/pwscan-go/pkg/transport"
)

// Scan connects as cfg describes, runs one session and returns its
// result. ctx bounds connecting and mDNS browsing only; the scan itself
// runs until every request has been answered.
func Scan(ctx context.Context, cfg Config, opts ...Option) (model.Result, error) {
	if err := cfg.Validate(); err != nil {
		return model.Result{}, err
	}
	o := buildOptions(opts)

	network, address := cfg.Network, cfg.Address
	if cfg.Discover {
		bctx, cancel := context.WithTimeout(ctx, cfg.DiscoverTimeout)
		svc, err := discovery.FindFirst(bctx, discovery.BrowserConfig{Interface: cfg.Interface, Logger: o.logger})
		cancel()
		if err != nil {
			return model.Result{}, fmt.Errorf("discover: %w", err)
		}
		network, address = "tcp", svc.Address()
		o.logger.Info("discovered graph service", "instance", svc.Instance, "address", address)
	}

	var topts []transport.ConnOption
	if o.protoLog != nil {
		topts = append(topts, transport.WithLogger(o.protoLog))
	}
	conn, err := transport.Dial(ctx, network, address, topts...)
	if err != nil {
		return model.Result{}, err
	}

	c, err := core.New(conn, core.WithLogger(o.logger), core.WithName(cfg.ClientName))
	if err != nil {
		conn.Close()
		return model.Result{}, fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	return RunSession(FromCore(c), opts...)
}

// RunSession runs one session on remote and releases its subscriptions.
func RunSession(remote Remote, opts ...Option) (model.Result, error) {
	s := NewSession(remote, opts...)
	res, err := s.Run()
	if cerr := s.Close(); cerr != nil && err == nil {
		s.logger.Warn("releasing subscriptions", "error", cerr)
	}
	return res, err
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return l, nil
}
