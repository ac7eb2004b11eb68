package mmr

import (
	"fmt"
	"testing"
)

func benchMMR(b *testing.B, leaves int) *MMR {
	b.Helper()
	h, err := NewHasher(AlgBlake2b256)
	if err != nil {
		b.Fatal(err)
	}
	m, err := New(NewMemoryStore(), h)
	if err != nil {
		b.Fatal(err)
	}
	data := make([][]byte, leaves)
	for i := range data {
		data[i] = []byte(fmt.Sprintf("leaf-%d", i))
	}
	if err := m.AppendLeaves(data); err != nil {
		b.Fatal(err)
	}
	return m
}

func BenchmarkAppendLeaf(b *testing.B) {
	m := benchMMR(b, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.AppendLeaves([][]byte{[]byte("bench leaf")}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAppendBatch100(b *testing.B) {
	data := make([][]byte, 100)
	for i := range data {
		data[i] = []byte(fmt.Sprintf("leaf-%d", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		m := benchMMR(b, 0)
		b.StartTimer()
		if err := m.AppendLeaves(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGenerateProof(b *testing.B) {
	m := benchMMR(b, 10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.GenerateProof(1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	m := benchMMR(b, 10000)
	p, err := m.GenerateProof(1)
	if err != nil {
		b.Fatal(err)
	}
	data := []byte("leaf-0")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ok, err := p.Verify(data)
		if err != nil || !ok {
			b.Fatal("verification failed")
		}
	}
}

func BenchmarkPeakPositions(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		PeakPositions(uint64(1)<<40 - 1 + uint64(i%97))
	}
}

func BenchmarkPosHeight(b *testing.B) {
	for i := 0; i < b.N; i++ {
		PosHeight(uint64(i) + 1)
	}
}
