package mmr

import (
	"fmt"
	"hash"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// DigestSize is the width of every node digest in bytes.
const DigestSize = 32

// Digest is a single node commitment.
type Digest [DigestSize]byte

// Algorithm names accepted by NewHasher. Every registered algorithm
// produces 32-byte digests.
const (
	AlgBlake2b256 = "blake2b-256"
	AlgSHA3256    = "sha3-256"
	AlgBlake3     = "blake3"

	// DefaultAlgorithm is used when the configuration names none.
	DefaultAlgorithm = AlgBlake2b256
)

// Hasher derives every digest in a range: leaf commitments, interior
// nodes and the bagged root. Prover and verifier must use the same
// algorithm; digests from different algorithms never agree.
type Hasher struct {
	name string
	new  func() hash.Hash
}

// NewHasher returns the hasher registered under the given algorithm name,
// or ErrUnknownAlgorithm. An empty name selects DefaultAlgorithm.
func NewHasher(algorithm string) (*Hasher, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	switch algorithm {
	case AlgBlake2b256:
		return &Hasher{name: AlgBlake2b256, new: func() hash.Hash {
			h, _ := blake2b.New256(nil)
			return h
		}}, nil
	case AlgSHA3256:
		return &Hasher{name: AlgSHA3256, new: sha3.New256}, nil
	case AlgBlake3:
		return &Hasher{name: AlgBlake3, new: func() hash.Hash {
			return blake3.New(DigestSize, nil)
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// Name returns the registered algorithm name.
func (h *Hasher) Name() string {
	return h.name
}

// HashWithPos commits to a position (or the range size, for root bagging)
// together with the given byte strings. The integer is serialized as its
// decimal ASCII digits; the big-endian fixed-width alternative is
// deliberately not used anywhere, so every digest in a deployment shares
// one convention. Callers feed:
//
//	leaf commitment:  HashWithPos(leafPos, data)
//	interior node:    HashWithPos(parentPos, left[:], right[:])
//	root bagging:     HashWithPos(size, peak digests left to right)
func (h *Hasher) HashWithPos(n uint64, parts ...[]byte) Digest {
	hh := h.new()
	hh.Write(strconv.AppendUint(nil, n, 10))
	for _, p := range parts {
		hh.Write(p)
	}

	var d Digest
	copy(d[:], hh.Sum(nil))
	return d
}

// EmptyRoot returns the root of a range holding no nodes, the hash of the
// serialized zero size with nothing bagged.
func (h *Hasher) EmptyRoot() Digest {
	return h.HashWithPos(0)
}
