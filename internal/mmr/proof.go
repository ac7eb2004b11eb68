package mmr

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Proof is a self-contained inclusion proof: everything the verifier
// needs beyond the leaf datum itself. Digest slices are copies; a proof
// never aliases engine state.
type Proof struct {
	Position   uint64   `json:"position"`    // Position of the proven leaf
	LocalPath  []Digest `json:"local_path"`  // Sibling digests, leaf to local peak
	LeftPeaks  []Digest `json:"left_peaks"`  // Peaks left of the local peak
	RightPeaks []Digest `json:"right_peaks"` // Peaks right of the local peak
	Root       Digest   `json:"root"`        // Committed root
	Size       uint64   `json:"mmr_size"`    // Committed range size
	Algorithm  string   `json:"algorithm"`   // Hash algorithm name
}

// MarshalText encodes a digest as lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(d)))
	hex.Encode(out, d[:])
	return out, nil
}

// UnmarshalText decodes a digest from hex.
func (d *Digest) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != DigestSize {
		return ErrInvalidNodeData
	}
	_, err := hex.Decode(d[:], text)
	return err
}

// Verify recomputes a candidate root from the proof and the candidate
// leaf datum and compares it with the committed root. It consults no
// engine state. A structurally malformed proof is rejected with
// ErrMalformedProof; a well-formed proof that simply does not match
// returns false with no error.
func (p *Proof) Verify(data []byte) (bool, error) {
	hasher, err := NewHasher(p.Algorithm)
	if err != nil {
		return false, err
	}

	if err := p.checkShape(); err != nil {
		return false, err
	}

	// Fold the local path bottom-up. Each path entry is the sibling of
	// the node the accumulator currently stands on, so the side of the
	// sibling decides the child order, and its parent position drives
	// the parent commitment.
	acc := hasher.HashWithPos(p.Position, data)
	for i, q := range ProofPathPositions(p.Position, p.Size) {
		sib := p.LocalPath[i]
		if IsRightSibling(q) {
			acc = hasher.HashWithPos(ParentPos(q), acc[:], sib[:])
		} else {
			acc = hasher.HashWithPos(ParentPos(q), sib[:], acc[:])
		}
	}

	// acc is now the local peak; bag it with the surrounding peaks.
	bag := make([][]byte, 0, len(p.LeftPeaks)+1+len(p.RightPeaks))
	for i := range p.LeftPeaks {
		bag = append(bag, p.LeftPeaks[i][:])
	}
	bag = append(bag, acc[:])
	for i := range p.RightPeaks {
		bag = append(bag, p.RightPeaks[i][:])
	}

	candidate := hasher.HashWithPos(p.Size, bag...)
	return candidate == p.Root, nil
}

// checkShape rejects proofs whose list lengths are inconsistent with
// their own position and size, before any hashing happens.
func (p *Proof) checkShape() error {
	if p.Position == 0 || p.Position > p.Size {
		return fmt.Errorf("%w: position %d outside size %d", ErrMalformedProof, p.Position, p.Size)
	}
	if !IsLeaf(p.Position) {
		return fmt.Errorf("%w: position %d is not a leaf", ErrMalformedProof, p.Position)
	}

	pp := ProofPositionsAt(p.Position, p.Size)
	if len(p.LocalPath) != len(pp.LocalPath) {
		return fmt.Errorf("%w: local path has %d digests, want %d", ErrMalformedProof, len(p.LocalPath), len(pp.LocalPath))
	}
	if len(p.LeftPeaks) != len(pp.LeftPeaks) {
		return fmt.Errorf("%w: %d left peaks, want %d", ErrMalformedProof, len(p.LeftPeaks), len(pp.LeftPeaks))
	}
	if len(p.RightPeaks) != len(pp.RightPeaks) {
		return fmt.Errorf("%w: %d right peaks, want %d", ErrMalformedProof, len(p.RightPeaks), len(pp.RightPeaks))
	}
	return nil
}

// MarshalJSON emits the public proof envelope.
func (p *Proof) MarshalJSON() ([]byte, error) {
	type envelope Proof
	e := envelope(*p)
	if e.LocalPath == nil {
		e.LocalPath = []Digest{}
	}
	if e.LeftPeaks == nil {
		e.LeftPeaks = []Digest{}
	}
	if e.RightPeaks == nil {
		e.RightPeaks = []Digest{}
	}
	return json.Marshal(e)
}

// Proof serialization format version
const proofFormatVersion = 1

// Serialize converts a Proof to a compact binary format for archival.
// Format:
//
//	[1 byte version][8 bytes Position]
//	[2 bytes PathLen][PathLen * 32 bytes]
//	[2 bytes LeftLen][LeftLen * 32 bytes]
//	[2 bytes RightLen][RightLen * 32 bytes]
//	[8 bytes Size][32 bytes Root]
//	[1 byte AlgLen][AlgLen bytes algorithm name]
func (p *Proof) Serialize() []byte {
	total := 1 + 8 +
		2 + len(p.LocalPath)*DigestSize +
		2 + len(p.LeftPeaks)*DigestSize +
		2 + len(p.RightPeaks)*DigestSize +
		8 + DigestSize +
		1 + len(p.Algorithm)

	buf := make([]byte, 0, total)
	buf = append(buf, proofFormatVersion)
	buf = binary.BigEndian.AppendUint64(buf, p.Position)

	appendDigests := func(ds []Digest) {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(ds)))
		for i := range ds {
			buf = append(buf, ds[i][:]...)
		}
	}
	appendDigests(p.LocalPath)
	appendDigests(p.LeftPeaks)
	appendDigests(p.RightPeaks)

	buf = binary.BigEndian.AppendUint64(buf, p.Size)
	buf = append(buf, p.Root[:]...)
	buf = append(buf, byte(len(p.Algorithm)))
	buf = append(buf, p.Algorithm...)

	return buf
}

// DeserializeProof reconstructs a Proof from its binary representation.
func DeserializeProof(data []byte) (*Proof, error) {
	if len(data) < 1+8 {
		return nil, ErrInvalidNodeData
	}

	offset := 0
	version := data[offset]
	offset++
	if version != proofFormatVersion {
		return nil, fmt.Errorf("mmr: unsupported proof version: %d", version)
	}

	p := &Proof{}
	p.Position = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	readDigests := func() ([]Digest, error) {
		if offset+2 > len(data) {
			return nil, ErrInvalidNodeData
		}
		n := int(binary.BigEndian.Uint16(data[offset:]))
		offset += 2
		if offset+n*DigestSize > len(data) {
			return nil, ErrInvalidNodeData
		}
		ds := make([]Digest, n)
		for i := 0; i < n; i++ {
			copy(ds[i][:], data[offset:offset+DigestSize])
			offset += DigestSize
		}
		return ds, nil
	}

	var err error
	if p.LocalPath, err = readDigests(); err != nil {
		return nil, err
	}
	if p.LeftPeaks, err = readDigests(); err != nil {
		return nil, err
	}
	if p.RightPeaks, err = readDigests(); err != nil {
		return nil, err
	}

	if offset+8+DigestSize+1 > len(data) {
		return nil, ErrInvalidNodeData
	}
	p.Size = binary.BigEndian.Uint64(data[offset:])
	offset += 8
	copy(p.Root[:], data[offset:offset+DigestSize])
	offset += DigestSize

	algLen := int(data[offset])
	offset++
	if offset+algLen != len(data) {
		return nil, ErrInvalidNodeData
	}
	p.Algorithm = string(data[offset:])

	return p, nil
}
