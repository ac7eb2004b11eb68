// Package spool turns files dropped into watched directories into
// append-ready leaves. A file becomes a leaf once it has settled: no
// write for the configured interval. The leaf is the file's raw bytes;
// a path whose content was already emitted is skipped until it changes
// again, so re-touching a spool file never double-commits it.
package spool

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultMaxLeafBytes caps the size of a single spool leaf. Leaves are
// held in memory from read to append, and a range leaf is meant to be a
// datum, not an archive.
const DefaultMaxLeafBytes = 4 << 20

// Leaf is a settled spool file, read and ready to append.
type Leaf struct {
	Path  string
	Data  []byte
	Stamp time.Time
}

// Spool watches directories and emits their settled files as leaves.
type Spool struct {
	fs     *fsnotify.Watcher
	dirs   []string
	settle time.Duration

	// MaxLeafBytes rejects spool files larger than this. Zero means
	// DefaultMaxLeafBytes. Set before Start.
	MaxLeafBytes int64

	mu      sync.Mutex
	pending map[string]time.Time // path -> last write seen
	emitted map[string][32]byte  // path -> content hash already committed

	leaves chan Leaf
	errs   chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a spool over the given directories. Files must settle for
// settleSec seconds before they are emitted.
func New(dirs []string, settleSec int) (*Spool, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Spool{
		fs:      fs,
		dirs:    dirs,
		settle:  time.Duration(settleSec) * time.Second,
		pending: make(map[string]time.Time),
		emitted: make(map[string][32]byte),
		leaves:  make(chan Leaf, 64),
		errs:    make(chan error, 8),
		done:    make(chan struct{}),
	}, nil
}

// Leaves returns the channel of append-ready leaves.
func (s *Spool) Leaves() <-chan Leaf {
	return s.leaves
}

// Errors returns the channel of spool errors.
func (s *Spool) Errors() <-chan error {
	return s.errs
}

// Start registers the directories and begins the sweep loop. Files
// already sitting in a spool directory settle from startup.
func (s *Spool) Start() error {
	now := time.Now()
	for _, dir := range s.dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("spool: %s is not a directory", abs)
		}
		if err := s.fs.Add(abs); err != nil {
			return err
		}

		entries, err := os.ReadDir(abs)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				s.pending[filepath.Join(abs, entry.Name())] = now
			}
		}
	}

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop shuts the spool down. Leaves already emitted stay readable on
// the channel until it is drained closed.
func (s *Spool) Stop() error {
	close(s.done)
	s.wg.Wait()
	close(s.leaves)
	close(s.errs)
	return s.fs.Close()
}

// Pending returns the number of files waiting to settle.
func (s *Spool) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// run is the single spool loop: filesystem notifications refresh the
// pending set, and a periodic sweep emits whatever has settled.
func (s *Spool) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			s.mu.Lock()
			s.pending[event.Name] = time.Now()
			s.mu.Unlock()

		case err, ok := <-s.fs.Errors:
			if !ok {
				return
			}
			s.report(err)

		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep reads every settled file and emits it as a leaf, unless its
// content was already committed. A leaf the consumer cannot take yet
// stays pending for the next sweep.
func (s *Spool) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.settle)
	for path, lastWrite := range s.pending {
		if !lastWrite.Before(cutoff) {
			continue
		}

		data, hash, err := s.read(path)
		if err != nil {
			delete(s.pending, path)
			s.report(fmt.Errorf("spool: %s: %w", path, err))
			continue
		}

		if prev, ok := s.emitted[path]; ok && prev == hash {
			delete(s.pending, path)
			continue
		}

		select {
		case s.leaves <- Leaf{Path: path, Data: data, Stamp: now}:
			s.emitted[path] = hash
			delete(s.pending, path)
		default:
			// Consumer is behind; retry on the next sweep.
		}
	}
}

// read loads a spool file as leaf bytes, enforcing the leaf size cap.
func (s *Spool) read(path string) ([]byte, [32]byte, error) {
	maxBytes := s.MaxLeafBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxLeafBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, [32]byte{}, err
	}
	if info.Size() > maxBytes {
		return nil, [32]byte{}, fmt.Errorf("%d bytes exceeds the %d byte leaf cap", info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return data, sha256.Sum256(data), nil
}

func (s *Spool) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
