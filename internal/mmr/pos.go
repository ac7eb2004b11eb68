package mmr

// Position arithmetic for the range. Node positions are 1-based and follow
// the post-order numbering induced by append order; heights are 1-based
// with leaves at height 1. Every function here is pure in (position, size)
// and never touches stored digests.
//
// The running example used in the comments below is the 13-leaf range of
// size 23:
//
//	4                15
//	              /      \
//	3            7        14            22
//	           /   \     /   \        /    \
//	2         3     6   10    13     18     21
//	         / \   / \  / \   / \   /  \   /  \
//	1       1   2 4   5 8  9 11 12 16  17 19  20  23

// JumpLeft moves from pos to a node of equal height further left in the
// forest, stepping over the largest perfect tree that precedes pos. Nodes
// whose positions are all binary ones are roots of perfect trees, so
// iterating JumpLeft always terminates on an all-ones position; all-ones
// inputs are fixed points.
func JumpLeft(pos uint64) uint64 {
	if AllOnes(pos) {
		return pos
	}
	msb := uint64(1) << (BitLength(pos) - 1)
	return pos - (msb - 1)
}

// PosHeight returns the height of the node at pos. Leaves are height 1.
//
// Jumping left preserves height, and for an all-ones position the height
// is exactly the bit length: JumpLeft(13) = 6, JumpLeft(6) = 3, and 3 is
// all ones with bit length 2, so node 13 has height 2.
func PosHeight(pos uint64) uint64 {
	for !AllOnes(pos) {
		pos = JumpLeft(pos)
	}
	return BitLength(pos)
}

// IsLeaf reports whether pos addresses a leaf.
func IsLeaf(pos uint64) bool {
	return PosHeight(pos) == 1
}

// SiblingOffset returns the distance between two siblings at the given
// height, which is the size of the perfect tree below either of them.
func SiblingOffset(height uint64) uint64 {
	return (uint64(1) << height) - 1
}

// IsRightSibling reports whether pos is the right child of its parent.
// The node one sibling-offset to the right of a left child is its sibling
// and has the same height; from a right child that slot holds a node of a
// different height.
func IsRightSibling(pos uint64) bool {
	h := PosHeight(pos)
	return PosHeight(pos+SiblingOffset(h)) != h
}

// SiblingPos returns the position of the sibling of pos.
func SiblingPos(pos uint64) uint64 {
	off := SiblingOffset(PosHeight(pos))
	if IsRightSibling(pos) {
		return pos - off
	}
	return pos + off
}

// ParentPos returns the position of the parent of pos. In post-order the
// parent immediately follows the right child.
func ParentPos(pos uint64) uint64 {
	if IsRightSibling(pos) {
		return pos + 1
	}
	return SiblingPos(pos) + 1
}

// PeakPositions returns the positions of all mountain peaks for a range of
// the given size, in ascending position order. The peaks correspond to the
// perfect trees of strictly decreasing height laid out left to right; each
// candidate tree size 2^k - 1 is consumed if it still fits in the
// remaining node count.
//
// PeakPositions(23) is [15, 22, 23].
func PeakPositions(size uint64) []uint64 {
	if size == 0 {
		return nil
	}
	if AllOnes(size) {
		return []uint64{size}
	}

	treeSize := (uint64(1) << (BitLength(size) - 1)) - 1
	remaining := size
	accum := uint64(0)

	var peaks []uint64
	for treeSize != 0 {
		if remaining >= treeSize {
			remaining -= treeSize
			accum += treeSize
			peaks = append(peaks, accum)
		}
		treeSize >>= 1
	}
	return peaks
}

// LeafCount returns the number of leaves in a range of the given size.
// Each mountain with f leaves holds 2f - 1 nodes, so summing over the
// peaks gives size = 2*leaves - |peaks|.
func LeafCount(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size + uint64(len(PeakPositions(size)))) / 2
}

// ProofPathPositions returns the positions of the sibling nodes on the
// path from the leaf at pos up to its local peak, bottom-up. A leaf that
// is itself a peak (necessarily the last node) has an empty path.
//
// The walk pushes the sibling of the current node and climbs to the
// parent until the parent falls outside the range; the final push then
// belongs to the climb that overshot and is discarded.
func ProofPathPositions(pos, size uint64) []uint64 {
	if pos == size {
		return nil
	}

	var path []uint64
	current := pos
	for {
		path = append(path, SiblingPos(current))
		current = ParentPos(current)
		if current > size {
			break
		}
	}
	return path[:len(path)-1]
}

// ProofPositions describes every node position a proof for one leaf
// draws on: the sibling path within the leaf's own mountain and the
// surrounding peaks, split by which side of the local peak they fall on.
type ProofPositions struct {
	LocalPath  []uint64
	LeftPeaks  []uint64
	RightPeaks []uint64
}

// ProofPositionsAt computes the proof positions for the leaf at pos in a
// range of the given size. The three lists are disjoint and, together
// with the leaf itself, determine every input needed to recompute the
// root.
func ProofPositionsAt(pos, size uint64) ProofPositions {
	path := ProofPathPositions(pos, size)

	localPeak := pos
	if len(path) > 0 {
		localPeak = ParentPos(path[len(path)-1])
	}

	pp := ProofPositions{LocalPath: path}
	allPeaks := PeakPositions(size)
	if len(allPeaks) > 1 {
		for _, p := range allPeaks {
			switch {
			case p < localPeak:
				pp.LeftPeaks = append(pp.LeftPeaks, p)
			case p > localPeak:
				pp.RightPeaks = append(pp.RightPeaks, p)
			}
		}
	}
	return pp
}
