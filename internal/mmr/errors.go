package mmr

import "errors"

// MMR-specific errors
var (
	// ErrPositionOutOfRange indicates a position of zero or beyond the
	// current range size.
	ErrPositionOutOfRange = errors.New("mmr: position out of range")

	// ErrNotLeaf indicates a proof was requested for an interior node.
	ErrNotLeaf = errors.New("mmr: position is not a leaf")

	// ErrBitWidthOverflow indicates a ones-mask wider than 64 bits was requested.
	ErrBitWidthOverflow = errors.New("mmr: bit width exceeds 64")

	// ErrMalformedProof indicates a proof whose shape is inconsistent with
	// its own position and size.
	ErrMalformedProof = errors.New("mmr: malformed proof")

	// ErrUnknownAlgorithm indicates an unregistered hash algorithm name.
	ErrUnknownAlgorithm = errors.New("mmr: unknown hash algorithm")

	// ErrCorruptedStore indicates the backing store has inconsistent data.
	ErrCorruptedStore = errors.New("mmr: corrupted store")

	// ErrInvalidNodeData indicates corrupted or truncated node data.
	ErrInvalidNodeData = errors.New("mmr: invalid node data")
)
