package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pwscan/pwscan-go/pkg/log"
)

// DefaultDialTimeout bounds connection establishment when ctx has no deadline.
const DefaultDialTimeout = 10 * time.Second

// Dial connects to a graph service. network is "unix" or "tcp".
func Dial(ctx context.Context, network, address string, opts ...ConnOption) (*Conn, error) {
	switch network {
	case "unix", "tcp", "tcp4", "tcp6":
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s %s: %w", network, address, err)
	}
	return NewConn(nc, log.RoleClient, opts...), nil
}
