// Command pwscan-sim serves a simulated audio graph for pwscan.
//
// The graph is read from a YAML file, or the built-in "studio" graph is
// used. With -interactive, nodes can be added and removed and settings
// changed while clients are connected.
//
// Usage:
//
//	pwscan-sim [flags]
//
// Flags:
//
//	-graph string         YAML graph file (default: built-in graph)
//	-addr string          Socket path or host:port (default $PWSCAN_ADDR or /tmp/pwscan-0)
//	-network string       unix or tcp (default "unix")
//	-advertise            Announce the service over mDNS (tcp only)
//	-interactive          Start the interactive console
//	-log-level string     debug, info, warn, error (default "info")
//	-protocol-log string  File receiving protocol events (CBOR)
//
// Examples:
//
//	# Serve the built-in graph on the default socket
//	pwscan-sim
//
//	# Serve a custom graph over TCP and announce it
//	pwscan-sim -graph lab.yaml -network tcp -addr :4713 -advertise
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pwscan/pwscan-go/cmd/pwscan-sim/interactive"
	"github.com/pwscan/pwscan-go/pkg/discovery"
	"github.com/pwscan/pwscan-go/pkg/graph"
	plog "github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/roundtrip"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

var (
	graphFile       = flag.String("graph", "", "YAML graph file (default: built-in graph)")
	addr            = flag.String("addr", "", "Socket path or host:port")
	network         = flag.String("network", roundtrip.DefaultNetwork, "Network: unix, tcp")
	advertise       = flag.Bool("advertise", false, "Announce the service over mDNS (tcp only)")
	iface           = flag.String("interface", "", "Network interface for mDNS (default: all)")
	interactiveMode = flag.Bool("interactive", false, "Start the interactive console")
	logLevel        = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog     = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	level, err := roundtrip.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	g := graph.Default()
	if *graphFile != "" {
		if g, err = graph.Load(*graphFile); err != nil {
			log.Fatalf("Failed to load graph: %v", err)
		}
	}

	address := *addr
	if address == "" {
		address = roundtrip.DefaultConfig().Address
	}
	if *advertise && *network == "unix" {
		log.Fatalf("Invalid configuration: -advertise needs -network tcp")
	}

	cfg := graph.Config{
		Network: *network,
		Address: address,
		Logger:  logger,
	}
	if *protocolLog != "" {
		fileLogger, err := plog.NewFileLogger(*protocolLog)
		if err != nil {
			log.Fatalf("Failed to create protocol logger: %v", err)
		}
		defer fileLogger.Close()
		cfg.ProtocolLogger = fileLogger
		log.Printf("Protocol logging to: %s", *protocolLog)
	}

	svc := graph.NewService(g, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	log.Printf("Serving graph %q (%d objects) on %s", svc.Name(), svc.ObjectCount(), svc.Addr())

	if *advertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{Interface: *iface})
		info := &discovery.ServiceInfo{
			Instance:        svc.Name(),
			Port:            listenPort(svc.Addr()),
			ProtocolVersion: wire.ProtocolVersion,
			Name:            svc.Name(),
			Objects:         svc.ObjectCount(),
		}
		if err := adv.Advertise(info); err != nil {
			log.Printf("Warning: mDNS advertisement failed: %v", err)
		} else {
			log.Printf("Advertising %s as %q", discovery.ServiceType, info.Instance)
			defer adv.Stop()
		}
	}

	if *interactiveMode {
		console, err := interactive.New(svc)
		if err != nil {
			log.Fatalf("Failed to start console: %v", err)
		}
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	if err := svc.Stop(); err != nil {
		log.Printf("Error stopping service: %v", err)
	}
}

func listenPort(a net.Addr) int {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return discovery.DefaultPort
}
