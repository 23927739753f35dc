// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bloom implements the Bloom filter used by sstables to skip reading
// a data block when it provably does not contain a key.
package bloom

// Filter is an encoded Bloom filter over a set of keys.
type Filter []byte

// MayContain reports whether the filter may contain key. False positives are
// possible; false negatives are not.
func (f Filter) MayContain(key []byte) bool {
	if len(f) < 2 {
		return false
	}
	k := f[len(f)-1]
	if k > 30 {
		// Reserved for future encodings of short filters; treat as a match
		// rather than reject what might be a valid filter we don't yet know.
		return true
	}
	nBits := uint32(8 * (len(f) - 1))
	h := hash(key)
	delta := h>>17 | h<<15
	for j := uint8(0); j < k; j++ {
		bitPos := h % nBits
		if f[bitPos/8]&(1<<(bitPos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// NewFilter builds a Bloom filter over keys using bitsPerKey bits per key.
// buf is reused as backing storage when it has enough capacity.
func NewFilter(buf []byte, keys [][]byte, bitsPerKey int) Filter {
	if bitsPerKey < 0 {
		bitsPerKey = 0
	}
	// 0.69 approximates ln(2): for a given number of bits per key, using
	// bitsPerKey*ln(2) hash functions minimizes the false positive rate.
	k := uint32(float64(bitsPerKey) * 0.69)
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}

	nBits := len(keys) * bitsPerKey
	// Very small filters have a high false-positive rate regardless of k;
	// enforce a floor so tiny tables still get useful filtering.
	if nBits < 64 {
		nBits = 64
	}
	nBytes := (nBits + 7) / 8
	nBits = nBytes * 8

	if nBytes+1 <= cap(buf) {
		buf = buf[:nBytes+1]
		clear(buf)
	} else {
		buf = make([]byte, nBytes+1)
	}

	for _, key := range keys {
		h := hash(key)
		delta := h>>17 | h<<15
		for j := uint32(0); j < k; j++ {
			bitPos := h % uint32(nBits)
			buf[bitPos/8] |= 1 << (bitPos % 8)
			h += delta
		}
	}
	buf[nBytes] = uint8(k)
	return Filter(buf)
}

// hash is a Murmur-like hash, chosen to match the bit layout MayContain and
// NewFilter agree on; it is not exported because callers never need to hash
// a key independently of building or probing a Filter.
func hash(b []byte) uint32 {
	const (
		seed = 0xbc9f1d34
		m    = 0xc6a4a793
	)
	h := uint32(seed) ^ uint32(len(b)*m)
	for ; len(b) >= 4; b = b[4:] {
		h += uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		h *= m
		h ^= h >> 16
	}
	switch len(b) {
	case 3:
		h += uint32(b[2]) << 16
		fallthrough
	case 2:
		h += uint32(b[1]) << 8
		fallthrough
	case 1:
		h += uint32(b[0])
		h *= m
		h ^= h >> 24
	}
	return h
}
