package discovery

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"
)

const (
	// ServiceType is the mDNS service type of graph services.
	ServiceType = "_pwgraph._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is used when a service is advertised without a port.
	DefaultPort = 4713

	// DefaultTTL is the record TTL used when none is configured.
	DefaultTTL = 120 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyProtocol = "pv"
	TXTKeyName     = "name"
	TXTKeyObjects  = "objs"
)

// Discovery errors.
var (
	ErrNotFound            = errors.New("no graph service found")
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrInstanceNameEmpty   = errors.New("instance name empty")
)

// ServiceInfo is what a graph service publishes about itself.
type ServiceInfo struct {
	// Instance is the mDNS instance name.
	Instance string

	// Port is the TCP port the service listens on.
	Port int

	// ProtocolVersion is the wire protocol version spoken.
	ProtocolVersion uint32

	// Name is a human-readable graph name (optional).
	Name string

	// Objects is the number of globals at advertisement time (optional).
	Objects int
}

// Service is a graph service found by browsing.
type Service struct {
	Instance  string
	Host      string
	Port      int
	Addresses []string

	ProtocolVersion uint32
	Name            string
	Objects         int
}

// Address returns a host:port suitable for dialing. IPv4 addresses are
// preferred; the host name is used when no address was resolved.
func (s *Service) Address() string {
	host := s.Host
	for _, a := range s.Addresses {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			host = a
			break
		}
		if host == s.Host {
			host = a
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertisement to one network interface.
	Interface string

	// TTL of the published records. Zero uses DefaultTTL.
	TTL time.Duration
}

// BrowserConfig configures browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	Interface string

	// Logger receives browse failures. Nil discards them.
	Logger *slog.Logger
}
