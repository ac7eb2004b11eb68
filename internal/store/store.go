package store

import (
	"fmt"

	"mmrd/internal/mmr"
)

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Open opens the node store for the named backend at the given path. The
// memory backend ignores the path.
func Open(backend, path string) (mmr.Store, error) {
	switch backend {
	case BackendMemory:
		return mmr.NewMemoryStore(), nil
	case BackendFile:
		return mmr.OpenFileStore(path)
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}
