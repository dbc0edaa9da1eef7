// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// Hash32 returns a uniform 32-bit digest of key.
// The upper and lower halves of the 64-bit xxhash are folded together so
// that both the shard selector (top bits) and the bucket index (low bits)
// see well-mixed input.
func Hash32(key []byte) uint32 {
	h := xxhash.Sum64(key)
	return uint32(h>>32) ^ uint32(h)
}

// Hash32String is Hash32 for string keys without a []byte conversion.
func Hash32String(key string) uint32 {
	h := xxhash.Sum64String(key)
	return uint32(h>>32) ^ uint32(h)
}
