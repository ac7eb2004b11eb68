package mmr

import (
	"errors"
	"testing"
)

func TestBitLength(t *testing.T) {
	cases := []struct {
		n    uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{7, 3},
		{8, 4},
		{255, 8},
		{256, 9},
		{^uint64(0), 64},
	}
	for _, c := range cases {
		if got := BitLength(c.n); got != c.want {
			t.Errorf("BitLength(%d) = %d, want %d", c.n, got, c.want)
		}
	}

	// bit_length(2^k) == k+1 for every representable power
	for k := uint64(0); k < 64; k++ {
		if got := BitLength(uint64(1) << k); got != k+1 {
			t.Errorf("BitLength(1<<%d) = %d, want %d", k, got, k+1)
		}
	}
}

func TestPopCount(t *testing.T) {
	if got := PopCount(0); got != 0 {
		t.Errorf("PopCount(0) = %d, want 0", got)
	}
	if got := PopCount(184); got != 4 {
		t.Errorf("PopCount(184) = %d, want 4", got)
	}

	// popcount(2^k - 1) == k
	for k := uint64(0); k < 64; k++ {
		mask, err := OnesMask(k)
		if err != nil {
			t.Fatalf("OnesMask(%d): %v", k, err)
		}
		if got := PopCount(mask); got != k {
			t.Errorf("PopCount(2^%d-1) = %d, want %d", k, got, k)
		}
	}
}

func TestAllOnes(t *testing.T) {
	// Vacuously true for zero.
	if !AllOnes(0) {
		t.Error("AllOnes(0) = false, want true")
	}

	for k := uint64(0); k < 64; k++ {
		mask, _ := OnesMask(k)
		if !AllOnes(mask) {
			t.Errorf("AllOnes(2^%d-1) = false, want true", k)
		}
	}
	if !AllOnes(^uint64(0)) {
		t.Error("AllOnes(max) = false, want true")
	}

	for _, n := range []uint64{2, 4, 5, 6, 8, 9, 12, 184, 1 << 40} {
		if AllOnes(n) {
			t.Errorf("AllOnes(%d) = true, want false", n)
		}
	}
}

func TestOnesMask(t *testing.T) {
	cases := []struct {
		k    uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{3, 7},
		{8, 255},
		{63, 1<<63 - 1},
		{64, ^uint64(0)},
	}
	for _, c := range cases {
		got, err := OnesMask(c.k)
		if err != nil {
			t.Fatalf("OnesMask(%d): %v", c.k, err)
		}
		if got != c.want {
			t.Errorf("OnesMask(%d) = %d, want %d", c.k, got, c.want)
		}
	}

	if _, err := OnesMask(65); !errors.Is(err, ErrBitWidthOverflow) {
		t.Errorf("OnesMask(65) error = %v, want ErrBitWidthOverflow", err)
	}
}
