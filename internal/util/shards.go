package util

import "runtime"

const (
	// MinShardCapacity is the smallest per-shard budget the automatic
	// shard count will produce. Tiny shards evict too eagerly.
	MinShardCapacity = 512 << 10

	// MaxShards caps the automatic shard count.
	MaxShards = 64
)

// ReasonableShardCount picks a practical default shard count for a cache of
// the given byte capacity. Heuristic: nextPow2(2*GOMAXPROCS), clamped to
// [1..MaxShards], then halved until every shard gets at least
// MinShardCapacity bytes.
func ReasonableShardCount(capacity uint64) int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := NextPow2(uint64(p * 2))
	if n > MaxShards {
		n = MaxShards
	}
	for n > 1 && capacity/n < MinShardCapacity {
		n >>= 1
	}
	return int(n)
}

// ShardIndex maps a 32-bit hash to one of 2^shardBits shards using the top
// bits of the digest. The low bits are left to the per-shard hash table.
func ShardIndex(hash uint32, shardBits int) int {
	if shardBits <= 0 {
		return 0
	}
	return int(hash >> (32 - uint(shardBits)))
}
