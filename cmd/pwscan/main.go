// Command pwscan lists the audio devices and clock settings of a graph
// service.
//
// It connects, enumerates the registry, binds every audio sink and source
// plus the "settings" metadata object, and prints what it learned once the
// service has answered every request.
//
// Usage:
//
//	pwscan [flags]
//
// Flags:
//
//	-addr string              Socket path or host:port (default $PWSCAN_ADDR or /tmp/pwscan-0)
//	-network string           unix or tcp (default "unix")
//	-config string            YAML configuration file
//	-discover                 Find the service over mDNS
//	-discover-timeout dur     mDNS browse timeout (default 5s)
//	-log-level string         debug, info, warn, error (default "info")
//	-protocol-log string      File receiving protocol events (CBOR)
//	-json                     Print the result as JSON
//
// Examples:
//
//	# Scan the local simulator
//	pwscan -addr /tmp/pwscan-0
//
//	# Find a service on the network and print JSON
//	pwscan -discover -json
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	plog "github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/model"
	"github.com/pwscan/pwscan-go/pkg/roundtrip"
)

var (
	addr            = flag.String("addr", "", "Socket path or host:port")
	network         = flag.String("network", roundtrip.DefaultNetwork, "Network: unix, tcp")
	configFile      = flag.String("config", "", "YAML configuration file")
	discover        = flag.Bool("discover", false, "Find the graph service over mDNS")
	discoverTimeout = flag.Duration("discover-timeout", roundtrip.DefaultDiscoverTimeout, "mDNS browse timeout")
	logLevel        = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog     = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	jsonOut         = flag.Bool("json", false, "Print the result as JSON")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("pwscan: ")

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := roundtrip.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []roundtrip.Option{roundtrip.WithLogger(logger)}
	if cfg.ProtocolLog != "" {
		fileLogger, err := plog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to create protocol logger: %v", err)
		}
		defer fileLogger.Close()

		var protoLog plog.Logger = fileLogger
		if level <= slog.LevelDebug {
			protoLog = plog.NewMultiLogger(fileLogger, plog.NewSlogAdapter(logger))
		}
		opts = append(opts, roundtrip.WithProtocolLogger(protoLog))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := roundtrip.Scan(ctx, cfg, opts...)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	if cfg.JSON {
		err = model.WriteJSON(os.Stdout, res)
	} else {
		err = model.WriteText(os.Stdout, res)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig starts from the config file, or the defaults without one,
// and applies every flag set on the command line.
func loadConfig() (roundtrip.Config, error) {
	cfg := roundtrip.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = roundtrip.LoadConfig(*configFile); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Address = *addr
		case "network":
			cfg.Network = *network
		case "discover":
			cfg.Discover = *discover
		case "discover-timeout":
			cfg.DiscoverTimeout = *discoverTimeout
		case "log-level":
			cfg.LogLevel = *logLevel
		case "protocol-log":
			cfg.ProtocolLog = *protocolLog
		case "json":
			cfg.JSON = *jsonOut
		}
	})
	return cfg, cfg.Validate()
}
