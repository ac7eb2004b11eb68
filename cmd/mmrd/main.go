// mmrd - append-only accumulator daemon
//
// mmrd maintains a Merkle Mountain Range over a durable node store,
// serves appends and inclusion proofs over a control socket, and can
// ingest leaves from watched spool directories.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mmrd/internal/config"
	"mmrd/internal/logging"
	"mmrd/internal/metrics"
	"mmrd/internal/mmr"
	"mmrd/internal/store"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	showVersion = flag.Bool("version", false, "show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mmrd %s (built %s, commit %s)\n", Version, BuildTime, Commit)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mmrd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.Setup(&logging.Config{
		Level:     logging.ParseLevel(cfg.LogLevel),
		Format:    logging.ParseFormat(cfg.LogFormat),
		FilePath:  cfg.LogPath,
		Component: "mmrd",
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logging.Close()

	hasher, err := mmr.NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return err
	}

	nodes, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open node store: %w", err)
	}

	rng, err := mmr.New(nodes, hasher)
	if err != nil {
		nodes.Close()
		return fmt.Errorf("restore range: %w", err)
	}

	logger.Info("range restored",
		"backend", cfg.StoreBackend,
		"algorithm", hasher.Name(),
		"size", rng.Size(),
		"leaves", rng.LeafCountNow(),
	)

	met := metrics.NewMMRDMetrics(nil)
	met.RangeSize.Set(int64(rng.Size()))
	met.LeafCount.Set(int64(rng.LeafCountNow()))
	met.PeakCount.Set(int64(len(rng.Peaks())))

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Default().Serve(cfg.MetricsAddr); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
	}

	daemon := NewDaemon(cfg, rng, met, logger, Version)
	if err := daemon.Start(); err != nil {
		rng.Close()
		return err
	}

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())

	daemon.Stop()
	if err := rng.Close(); err != nil {
		logger.Error("close range", "error", err)
	}
	return nil
}
