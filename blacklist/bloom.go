package blacklist

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
)

// BloomFilter is the fast path in front of the exact URL store. Membership
// answers may be false positives, never false negatives; bits are never
// cleared, so removal is handled by the exact store alone.
type BloomFilter struct {
	bits []byte
	m    uint64 // number of bits
	k    int    // number of probe positions per entry
}

// NewBloomFilter creates a filter with m bits and k hash probes.
func NewBloomFilter(m uint64, k int) *BloomFilter {
	if m == 0 {
		m = 1
	}
	if k < 1 {
		k = 1
	}
	return &BloomFilter{
		bits: make([]byte, (m+7)/8),
		m:    m,
		k:    k,
	}
}

// positions derives the k probe positions via double hashing.
func (f *BloomFilter) positions(s string) []uint64 {
	h1 := fnvSum(s)
	h2 := fnvSum(s + "#2")
	if h2 == 0 {
		h2 = 1
	}
	pos := make([]uint64, f.k)
	for i := 0; i < f.k; i++ {
		pos[i] = (h1 + uint64(i)*h2) % f.m
	}
	return pos
}

// Add sets the entry's bits.
func (f *BloomFilter) Add(s string) {
	for _, p := range f.positions(s) {
		f.bits[p/8] |= 1 << (p % 8)
	}
}

// Has reports whether all of the entry's bits are set.
func (f *BloomFilter) Has(s string) bool {
	for _, p := range f.positions(s) {
		if f.bits[p/8]&(1<<(p%8)) == 0 {
			return false
		}
	}
	return true
}

// SaveToFile persists the filter state: m, k, then the bit array.
func (f *BloomFilter) SaveToFile(path string) error {
	buf := make([]byte, 16+len(f.bits))
	binary.BigEndian.PutUint64(buf[0:8], f.m)
	binary.BigEndian.PutUint64(buf[8:16], uint64(f.k))
	copy(buf[16:], f.bits)
	return os.WriteFile(path, buf, 0600)
}

// LoadFromFile restores saved state. The stored geometry replaces the
// filter's own; a short or inconsistent file is an error and the caller
// decides whether to start clean.
func (f *BloomFilter) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 16 {
		return fmt.Errorf("bloom state file truncated: %d bytes", len(data))
	}
	m := binary.BigEndian.Uint64(data[0:8])
	k := int(binary.BigEndian.Uint64(data[8:16]))
	if m == 0 || k < 1 || uint64(len(data)-16) != (m+7)/8 {
		return fmt.Errorf("bloom state file corrupted")
	}
	f.m = m
	f.k = k
	f.bits = make([]byte, len(data)-16)
	copy(f.bits, data[16:])
	return nil
}

func fnvSum(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
