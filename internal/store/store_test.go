package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmrd/internal/mmr"
)

func openBackend(t *testing.T, backend string) mmr.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.db")
	s, err := Open(backend, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("cassandra", "")
	assert.Error(t, err)
}

func TestBackendsRoundTrip(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendFile, BackendSQLite, BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			s := openBackend(t, backend)

			size, err := s.Size()
			require.NoError(t, err)
			require.Zero(t, size)

			var digests []mmr.Digest
			for i := 0; i < 20; i++ {
				var d mmr.Digest
				copy(d[:], fmt.Sprintf("digest-%02d", i))
				pos, err := s.Append(d)
				require.NoError(t, err)
				assert.Equal(t, uint64(i)+1, pos)
				digests = append(digests, d)
			}

			for i, want := range digests {
				got, err := s.Get(uint64(i) + 1)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			_, err = s.Get(0)
			assert.ErrorIs(t, err, mmr.ErrPositionOutOfRange)
			_, err = s.Get(21)
			assert.ErrorIs(t, err, mmr.ErrPositionOutOfRange)
		})
	}
}

func TestDurableBackendsReopen(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite, BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nodes.db")

			s, err := Open(backend, path)
			require.NoError(t, err)
			var d mmr.Digest
			d[0] = 0x42
			_, err = s.Append(d)
			require.NoError(t, err)
			require.NoError(t, s.Sync())
			require.NoError(t, s.Close())

			s, err = Open(backend, path)
			require.NoError(t, err)
			defer s.Close()

			size, err := s.Size()
			require.NoError(t, err)
			require.Equal(t, uint64(1), size)

			got, err := s.Get(1)
			require.NoError(t, err)
			assert.Equal(t, d, got)
		})
	}
}

func TestEngineOverDurableBackends(t *testing.T) {
	// The engine restores peaks and root from any backend by size alone.
	hasher, err := mmr.NewHasher(mmr.AlgBlake2b256)
	require.NoError(t, err)

	for _, backend := range []string{BackendSQLite, BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nodes.db")

			s, err := Open(backend, path)
			require.NoError(t, err)
			m, err := mmr.New(s, hasher)
			require.NoError(t, err)

			data := make([][]byte, 13)
			for i := range data {
				data[i] = []byte(fmt.Sprintf("doc %d", i))
			}
			require.NoError(t, m.AppendLeaves(data))
			require.Equal(t, uint64(23), m.Size())
			root := m.Root()
			require.NoError(t, m.Close())

			s, err = Open(backend, path)
			require.NoError(t, err)
			m, err = mmr.New(s, hasher)
			require.NoError(t, err)
			defer m.Close()

			assert.Equal(t, root, m.Root())

			proof, err := m.GenerateProof(16)
			require.NoError(t, err)
			ok, err := proof.Verify([]byte("doc 8"))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}
