package ipc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mmrd/internal/metrics"
	"mmrd/internal/mmr"
)

// DaemonHandlerConfig wires the handler to the daemon's state.
type DaemonHandlerConfig struct {
	Range        *mmr.MMR
	Version      string
	StoreBackend string
	Metrics      *metrics.MMRDMetrics
	Logger       *slog.Logger
}

// DaemonHandler serves range operations over IPC. The handler holds the
// engine handle; clients never touch the store directly, and appends are
// refused below the write permission level.
type DaemonHandler struct {
	rng     *mmr.MMR
	version string
	backend string
	met     *metrics.MMRDMetrics
	log     *slog.Logger
	started time.Time
}

// NewDaemonHandler creates a handler over the given engine.
func NewDaemonHandler(cfg DaemonHandlerConfig) *DaemonHandler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &DaemonHandler{
		rng:     cfg.Range,
		version: cfg.Version,
		backend: cfg.StoreBackend,
		met:     cfg.Metrics,
		log:     log,
		started: time.Now(),
	}
}

var errPermission = errors.New("ipc: append requires write permission")

// errorCode maps handler errors to stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, mmr.ErrPositionOutOfRange):
		return "position_out_of_range"
	case errors.Is(err, mmr.ErrNotLeaf):
		return "not_a_leaf"
	case errors.Is(err, errPermission):
		return "permission_denied"
	default:
		return "internal"
	}
}

func digestHex(d mmr.Digest) string {
	return hex.EncodeToString(d[:])
}

func peaksHex(peaks []mmr.Digest) []string {
	out := make([]string, len(peaks))
	for i, p := range peaks {
		out[i] = digestHex(p)
	}
	return out
}

// HandleMessage implements Handler.
func (h *DaemonHandler) HandleMessage(conn *Conn, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgHandshake:
		return NewMessage(MsgHandshakeAck, msg.Header.RequestID, HandshakeAck{
			ServerVersion: h.version,
			Permission:    conn.Permission,
			Algorithm:     h.rng.Algorithm(),
		})

	case MsgStatusRequest:
		return NewMessage(MsgStatusResponse, msg.Header.RequestID, StatusResponse{
			Version:       h.version,
			UptimeSeconds: int64(time.Since(h.started).Seconds()),
			Size:          h.rng.Size(),
			LeafCount:     h.rng.LeafCountNow(),
			PeakCount:     len(h.rng.Peaks()),
			Root:          digestHex(h.rng.Root()),
			Algorithm:     h.rng.Algorithm(),
			StoreBackend:  h.backend,
		})

	case MsgAppend:
		return h.handleAppend(conn, msg)

	case MsgRootRequest:
		return NewMessage(MsgRootResponse, msg.Header.RequestID, RootResponse{
			Size: h.rng.Size(),
			Root: digestHex(h.rng.Root()),
		})

	case MsgPeaksRequest:
		return NewMessage(MsgPeaksResponse, msg.Header.RequestID, PeaksResponse{
			Size:  h.rng.Size(),
			Peaks: peaksHex(h.rng.Peaks()),
		})

	case MsgProofRequest:
		return h.handleProof(msg)

	case MsgNodeRequest:
		var req NodeRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		d, err := h.rng.Node(req.Position)
		if err != nil {
			return nil, err
		}
		return NewMessage(MsgNodeResponse, msg.Header.RequestID, NodeResponse{
			Position: req.Position,
			Digest:   digestHex(d),
		})

	default:
		return nil, fmt.Errorf("ipc: unsupported message type 0x%04x", msg.Header.Type)
	}
}

func (h *DaemonHandler) handleAppend(conn *Conn, msg *Message) (*Message, error) {
	if conn.Permission < PermWrite {
		return nil, errPermission
	}

	var req AppendRequest
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}

	// Leaf positions are assigned in batch order; record them before the
	// append mutates the size.
	positions := make([]uint64, 0, len(req.Leaves))
	size := h.rng.Size()
	for range req.Leaves {
		positions = append(positions, size+1)
		size = nextSizeAfterLeaf(size)
	}

	start := time.Now()
	if err := h.rng.AppendLeaves(req.Leaves); err != nil {
		if h.met != nil {
			h.met.ErrorsTotal.Inc()
		}
		return nil, err
	}

	if h.met != nil && len(req.Leaves) > 0 {
		h.met.LeavesTotal.Add(uint64(len(req.Leaves)))
		h.met.BatchesTotal.Inc()
		h.met.AppendDuration.Observe(time.Since(start).Seconds())
		h.met.RangeSize.Set(int64(h.rng.Size()))
		h.met.LeafCount.Set(int64(h.rng.LeafCountNow()))
		h.met.PeakCount.Set(int64(len(h.rng.Peaks())))
	}

	h.log.Info("appended leaves", "count", len(req.Leaves), "size", h.rng.Size(), "client", conn.ID)

	return NewMessage(MsgAppendResp, msg.Header.RequestID, AppendResponse{
		Size:      h.rng.Size(),
		LeafCount: h.rng.LeafCountNow(),
		Root:      digestHex(h.rng.Root()),
		Positions: positions,
	})
}

// nextSizeAfterLeaf computes the node count after appending one leaf to
// a range of the given size: one leaf plus the interior nodes it
// completes.
func nextSizeAfterLeaf(size uint64) uint64 {
	pos := size + 1
	for mmr.IsRightSibling(pos) {
		pos++
	}
	return pos
}

func (h *DaemonHandler) handleProof(msg *Message) (*Message, error) {
	var req ProofRequest
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}

	start := time.Now()
	proof, err := h.rng.GenerateProof(req.Position)
	if err != nil {
		if h.met != nil {
			h.met.ErrorsTotal.Inc()
		}
		return nil, err
	}
	if h.met != nil {
		h.met.ProofsTotal.Inc()
		h.met.ProofDuration.Observe(time.Since(start).Seconds())
	}

	envelope, err := json.Marshal(proof)
	if err != nil {
		return nil, err
	}
	return NewMessage(MsgProofResponse, msg.Header.RequestID, ProofResponse{Proof: envelope})
}
