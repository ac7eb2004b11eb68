package mmr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()

	size, err := s.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Fatalf("fresh store size = %d, want 0", size)
	}

	var digests []Digest
	for i := byte(0); i < 10; i++ {
		var d Digest
		d[0] = i + 1
		pos, err := s.Append(d)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if pos != uint64(i)+1 {
			t.Fatalf("Append returned position %d, want %d", pos, i+1)
		}
		digests = append(digests, d)
	}

	for i, want := range digests {
		got, err := s.Get(uint64(i) + 1)
		if err != nil {
			t.Fatalf("Get(%d): %v", i+1, err)
		}
		if got != want {
			t.Errorf("Get(%d) mismatch", i+1)
		}
	}

	if _, err := s.Get(0); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("Get(0) error = %v, want ErrPositionOutOfRange", err)
	}
	if _, err := s.Get(11); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("Get(11) error = %v, want ErrPositionOutOfRange", err)
	}

	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.mmr")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	testStoreRoundTrip(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and confirm the digests survived.
	s, err = OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	size, err := s.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 10 {
		t.Fatalf("reopened size = %d, want 10", size)
	}
	d, err := s.Get(3)
	if err != nil {
		t.Fatalf("Get(3): %v", err)
	}
	if d[0] != 3 {
		t.Errorf("Get(3)[0] = %d, want 3", d[0])
	}
}

func TestFileStoreRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.mmr")
	if err := os.WriteFile(path, make([]byte, DigestSize+7), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(path); !errors.Is(err, ErrCorruptedStore) {
		t.Errorf("OpenFileStore error = %v, want ErrCorruptedStore", err)
	}
}

func TestFileStoreReadAfterBufferedWrite(t *testing.T) {
	// Get must observe digests still sitting in the write buffer.
	path := filepath.Join(t.TempDir(), "nodes.mmr")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var d Digest
	d[31] = 0xAB
	if _, err := s.Append(d); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if got != d {
		t.Error("Get(1) did not see buffered write")
	}
}
