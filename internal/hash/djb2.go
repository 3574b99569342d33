// Package hash names buckets. The same digest picks the bucket file on disk
// and the slot in the lock table, so it must never change between releases.
package hash

import "strconv"

const djb2Seed uint32 = 5381

// Sum returns the 32-bit djb2 digest of key.
//
// Distinct keys may collide; callers must disambiguate by key.
func Sum(key string) uint32 {
	h := djb2Seed
	for i := 0; i < len(key); i++ {
		h = (h << 5) + h + uint32(key[i])
	}
	return h
}

// Hex renders a digest as the bucket file name: lowercase hex, no padding.
func Hex(h uint32) string {
	return strconv.FormatUint(uint64(h), 16)
}

// Name is shorthand for Hex(Sum(key)).
func Name(key string) string {
	return Hex(Sum(key))
}
