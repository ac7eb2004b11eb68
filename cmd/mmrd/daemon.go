package main

import (
	"encoding/hex"
	"log/slog"
	"sync"

	"mmrd/internal/config"
	"mmrd/internal/ipc"
	"mmrd/internal/logging"
	"mmrd/internal/metrics"
	"mmrd/internal/mmr"
	"mmrd/internal/spool"
)

// Daemon ties the engine to the control sockets and the spool. The
// daemon owns the engine handle, and append authority flows only
// through the write socket: its connections get PermWrite, while the
// optional read-only socket's connections can query but never append.
type Daemon struct {
	cfg      *config.Config
	rng      *mmr.MMR
	met      *metrics.MMRDMetrics
	log      *slog.Logger
	server   *ipc.Server
	roServer *ipc.Server
	ingest   *spool.Spool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewDaemon creates the daemon.
func NewDaemon(cfg *config.Config, rng *mmr.MMR, met *metrics.MMRDMetrics, log *slog.Logger, version string) *Daemon {
	handler := ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
		Range:        rng,
		Version:      version,
		StoreBackend: cfg.StoreBackend,
		Metrics:      met,
		Logger:       logging.Component(log, "ipc"),
	})

	d := &Daemon{
		cfg: cfg,
		rng: rng,
		met: met,
		log: log,
		server: ipc.NewServer(ipc.ServerConfig{
			SocketPath:  cfg.SocketPath,
			Version:     version,
			DefaultPerm: ipc.PermWrite,
			Logger:      logging.Component(log, "ipc"),
		}, handler),
		done: make(chan struct{}),
	}

	if cfg.ReadOnlySocketPath != "" {
		d.roServer = ipc.NewServer(ipc.ServerConfig{
			SocketPath:  cfg.ReadOnlySocketPath,
			Version:     version,
			DefaultPerm: ipc.PermRead,
			Logger:      logging.Component(log, "ipc-ro"),
		}, handler)
	}

	return d
}

// Start brings up the control sockets, the update fan-out and, when
// spool directories are configured, the ingest loop.
func (d *Daemon) Start() error {
	if err := d.server.Start(); err != nil {
		return err
	}
	if d.roServer != nil {
		if err := d.roServer.Start(); err != nil {
			d.server.Stop()
			return err
		}
		d.log.Info("read-only socket exposed", "socket", d.cfg.ReadOnlySocketPath)
	}

	d.wg.Add(1)
	go d.fanOutUpdates()

	if len(d.cfg.WatchPaths) > 0 {
		ingest, err := spool.New(d.cfg.WatchPaths, d.cfg.Interval)
		if err != nil {
			return err
		}
		if err := ingest.Start(); err != nil {
			return err
		}
		d.ingest = ingest

		d.wg.Add(1)
		go d.ingestLoop()
		d.log.Info("spool started", "paths", d.cfg.WatchPaths, "settle", d.cfg.Interval)
	}

	return nil
}

// Stop shuts everything down in reverse order.
func (d *Daemon) Stop() {
	if d.ingest != nil {
		d.ingest.Stop()
	}
	close(d.done)
	d.server.Stop()
	if d.roServer != nil {
		d.roServer.Stop()
	}
	d.wg.Wait()
}

// broadcast relays an event to the subscribers of both sockets.
func (d *Daemon) broadcast(event ipc.Event) {
	d.server.Broadcast(event)
	if d.roServer != nil {
		d.roServer.Broadcast(event)
	}
}

// fanOutUpdates relays engine updates to subscribed clients.
func (d *Daemon) fanOutUpdates() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case update, ok := <-d.rng.Updates():
			if !ok {
				return
			}
			peaks := make([]string, len(update.Peaks))
			for i, p := range update.Peaks {
				peaks[i] = hex.EncodeToString(p[:])
			}
			d.broadcast(ipc.Event{
				Type: ipc.EventRangeUpdated,
				Range: &ipc.RangeUpdate{
					Size:  update.Size,
					Root:  hex.EncodeToString(update.Root[:]),
					Peaks: peaks,
				},
			})
		}
	}
}

// ingestLoop appends every settled spool leaf.
func (d *Daemon) ingestLoop() {
	defer d.wg.Done()

	log := logging.Component(d.log, "ingest")
	for {
		select {
		case <-d.done:
			return

		case leaf, ok := <-d.ingest.Leaves():
			if !ok {
				return
			}
			if err := d.rng.AppendLeaves([][]byte{leaf.Data}); err != nil {
				log.Error("append spool leaf", "path", leaf.Path, "error", err)
				d.met.ErrorsTotal.Inc()
				continue
			}

			d.met.IngestedFilesTotal.Inc()
			d.met.LeavesTotal.Inc()
			d.met.BatchesTotal.Inc()
			d.met.RangeSize.Set(int64(d.rng.Size()))
			d.met.LeafCount.Set(int64(d.rng.LeafCountNow()))
			d.met.PeakCount.Set(int64(len(d.rng.Peaks())))
			log.Info("ingested", "path", leaf.Path, "bytes", len(leaf.Data), "size", d.rng.Size())

		case err, ok := <-d.ingest.Errors():
			if !ok {
				return
			}
			log.Warn("spool", "error", err)
			d.met.ErrorsTotal.Inc()
		}
	}
}
