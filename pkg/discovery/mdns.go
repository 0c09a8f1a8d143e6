package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser publishes one graph service instance.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config}
}

// Advertise starts publishing info, replacing any earlier advertisement.
func (a *Advertiser) Advertise(info *ServiceInfo) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := info.Port
	if port == 0 {
		port = DefaultPort
	}

	ttl := a.config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	server, err := zeroconf.Register(
		info.Instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeTXT(info)),
		interfaces(a.config.Interface),
		zeroconf.TTL(uint32(ttl.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the named interface, or nil for all interfaces.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// browseFunc runs the mDNS query. Replaced in tests.
var browseFunc = zeroconf.Browse

// browser is one running browse. err is set before out is closed.
type browser struct {
	out chan *Service
	err error
}

// Browse reports graph services until ctx is done. Each instance is sent
// once, the first time it is seen; later sightings on other interfaces
// only add addresses. The returned channel is closed when ctx is done or
// the query fails.
func Browse(ctx context.Context, config BrowserConfig) <-chan *Service {
	return startBrowse(ctx, config).out
}

func startBrowse(ctx context.Context, config BrowserConfig) *browser {
	b := &browser{out: make(chan *Service)}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	failed := make(chan error, 1)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(b.out)

		services := make(map[string]*Service)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if svc == nil {
					continue
				}

				if existing, found := services[svc.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.Instance] = svc
				select {
				case b.out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case err := <-failed:
				b.err = err
				return

			case <-ctx.Done():
				return
			}
		}
	}()

	browse := browseFunc
	go func() {
		err := browse(ctx, ServiceType, Domain, entries, removed, opts...)
		if err != nil && ctx.Err() == nil {
			logger.Error("mdns browse failed", "service", ServiceType, "error", err)
			failed <- err
		}
	}()

	return b
}

// FindFirst browses until one graph service is found or ctx is done.
// A failing query is returned instead of ErrNotFound.
func FindFirst(ctx context.Context, config BrowserConfig) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := startBrowse(ctx, config)
	svc, ok := <-b.out
	if !ok {
		if b.err != nil {
			return nil, fmt.Errorf("browse: %w", b.err)
		}
		return nil, ErrNotFound
	}
	return svc, nil
}

// entryToService converts a zeroconf entry. Entries without valid TXT
// records are dropped.
func entryToService(entry *zeroconf.ServiceEntry) *Service {
	info, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Service{
		Instance:        entry.Instance,
		Host:            entry.HostName,
		Port:            entry.Port,
		Addresses:       addrs,
		ProtocolVersion: info.ProtocolVersion,
		Name:            info.Name,
		Objects:         info.Objects,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses of entry from addresses.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
