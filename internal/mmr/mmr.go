// Package mmr implements a Merkle Mountain Range (MMR), an append-only
// cryptographic accumulator laid out as a forest of perfect binary trees
// of strictly decreasing height. Leaves are committed with their position,
// interior nodes with the positions of their parents, and the root bags
// the current peaks together with the range size, so a compact proof plus
// the root is enough to confirm that a leaf was committed at a specific
// position.
package mmr

import (
	"fmt"
	"sync"
)

// MMR is the range engine. It exclusively owns its node store and the
// peaks/root caches; exclusive ownership of the handle is what confers
// append authority. All methods are safe for concurrent use, but the
// structure assumes a single writer.
type MMR struct {
	mu     sync.RWMutex
	store  Store
	hasher *Hasher
	size   uint64
	peaks  []Digest
	root   Digest

	updates chan Update
}

// Update describes the state of the range after one non-empty append
// batch.
type Update struct {
	Root  Digest
	Peaks []Digest
	Size  uint64
}

// New creates an MMR over the given store with the given hasher. A
// non-empty store is restored by recomputing the peaks and root for its
// size; the node sequence itself is the snapshot format.
func New(store Store, hasher *Hasher) (*MMR, error) {
	m := &MMR{
		store:   store,
		hasher:  hasher,
		updates: make(chan Update, 16),
	}
	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

// restore rebuilds the cached peaks and root from the backing store.
func (m *MMR) restore() error {
	size, err := m.store.Size()
	if err != nil {
		return err
	}
	m.size = size
	return m.refreshCaches()
}

// refreshCaches recomputes the peaks and root for the current size.
// Caller must hold the write lock (or have exclusive access).
func (m *MMR) refreshCaches() error {
	positions := PeakPositions(m.size)
	peaks := make([]Digest, len(positions))
	for i, p := range positions {
		d, err := m.store.Get(p)
		if err != nil {
			return fmt.Errorf("fetch peak %d: %w", p, err)
		}
		peaks[i] = d
	}

	parts := make([][]byte, len(peaks))
	for i := range peaks {
		parts[i] = peaks[i][:]
	}

	m.peaks = peaks
	m.root = m.hasher.HashWithPos(m.size, parts...)
	return nil
}

// Size returns the total number of nodes in the range.
func (m *MMR) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Root returns the current bagged root. An empty range has the root
// H(serialize(0)).
func (m *MMR) Root() Digest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// Peaks returns the digests of the current mountain peaks, left to right.
func (m *MMR) Peaks() []Digest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peaks := make([]Digest, len(m.peaks))
	copy(peaks, m.peaks)
	return peaks
}

// LeafCountNow returns the number of leaves in the range.
func (m *MMR) LeafCountNow() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LeafCount(m.size)
}

// Algorithm returns the name of the hash algorithm the range uses.
func (m *MMR) Algorithm() string {
	return m.hasher.Name()
}

// Updates returns the channel carrying one Update per non-empty append
// batch. Sends never block; an update is dropped if the channel is full,
// so consumers that need every root should read Root after draining.
func (m *MMR) Updates() <-chan Update {
	return m.updates
}

// AppendLeaves appends each datum in order and recomputes the peaks and
// root. An empty batch is a no-op with no notification. The store only
// observes complete nodes; every interior node is written immediately
// after both of its children exist.
func (m *MMR) AppendLeaves(data [][]byte) error {
	if len(data) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range data {
		if err := m.appendOne(d); err != nil {
			return err
		}
	}
	if err := m.refreshCaches(); err != nil {
		return err
	}

	update := Update{Root: m.root, Peaks: make([]Digest, len(m.peaks)), Size: m.size}
	copy(update.Peaks, m.peaks)
	select {
	case m.updates <- update:
	default:
	}
	return nil
}

// appendOne pushes the leaf commitment and then every interior node the
// new leaf completes: while the freshly written node is a right sibling,
// its parent's left child already exists, so the parent can be written
// too. Caller must hold the write lock.
func (m *MMR) appendOne(data []byte) error {
	pos := m.size + 1
	node := m.hasher.HashWithPos(pos, data)
	if _, err := m.store.Append(node); err != nil {
		return err
	}
	m.size = pos

	for IsRightSibling(pos) {
		left, err := m.store.Get(SiblingPos(pos))
		if err != nil {
			return fmt.Errorf("fetch left child of %d: %w", pos+1, err)
		}
		pos++
		node = m.hasher.HashWithPos(pos, left[:], node[:])
		if _, err := m.store.Append(node); err != nil {
			return err
		}
		m.size = pos
	}
	return nil
}

// Node returns the stored digest at the given position. Used for
// snapshotting; hosts persist the node sequence and restore by replaying
// it through a store handed to New.
func (m *MMR) Node(pos uint64) (Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pos == 0 || pos > m.size {
		return Digest{}, ErrPositionOutOfRange
	}
	return m.store.Get(pos)
}

// GenerateProof creates an inclusion proof for the leaf at the given
// position against the current root and size. Only leaves can be proven.
// The proof carries copies of every digest it needs and stays valid for
// the committed size regardless of later appends.
func (m *MMR) GenerateProof(pos uint64) (*Proof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pos == 0 || pos > m.size {
		return nil, ErrPositionOutOfRange
	}
	if !IsLeaf(pos) {
		return nil, ErrNotLeaf
	}

	pp := ProofPositionsAt(pos, m.size)

	fetch := func(positions []uint64) ([]Digest, error) {
		digests := make([]Digest, len(positions))
		for i, p := range positions {
			d, err := m.store.Get(p)
			if err != nil {
				return nil, fmt.Errorf("fetch proof node %d: %w", p, err)
			}
			digests[i] = d
		}
		return digests, nil
	}

	localPath, err := fetch(pp.LocalPath)
	if err != nil {
		return nil, err
	}
	leftPeaks, err := fetch(pp.LeftPeaks)
	if err != nil {
		return nil, err
	}
	rightPeaks, err := fetch(pp.RightPeaks)
	if err != nil {
		return nil, err
	}

	return &Proof{
		Position:   pos,
		LocalPath:  localPath,
		LeftPeaks:  leftPeaks,
		RightPeaks: rightPeaks,
		Root:       m.root,
		Size:       m.size,
		Algorithm:  m.hasher.Name(),
	}, nil
}

// Sync flushes the backing store.
func (m *MMR) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Sync()
}

// Close flushes and closes the backing store.
func (m *MMR) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Close()
}
