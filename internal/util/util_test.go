package util

import (
	"runtime"
	"testing"
)

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want uint64 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {1000, 1024},
		{1 << 40, 1 << 40}, {1<<40 + 1, 1 << 41}, {1<<63 + 1, 1 << 63},
	}
	for _, c := range cases {
		if got := NextPow2(c.in); got != c.want {
			t.Fatalf("NextPow2(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestLog2(t *testing.T) {
	t.Parallel()

	for i := 0; i < 64; i++ {
		if got := Log2(1 << uint(i)); got != i {
			t.Fatalf("Log2(1<<%d) = %d", i, got)
		}
	}
	if Log2(0) != 0 || Log2(3) != 1 {
		t.Fatal("Log2 edge cases")
	}
}

func TestShardIndex_TopBits(t *testing.T) {
	t.Parallel()

	if ShardIndex(0xFFFFFFFF, 0) != 0 {
		t.Fatal("zero bits must always map to shard 0")
	}
	if got := ShardIndex(0x80000000, 1); got != 1 {
		t.Fatalf("top bit set with 1 shard bit: got %d", got)
	}
	if got := ShardIndex(0x7FFFFFFF, 1); got != 0 {
		t.Fatalf("top bit clear with 1 shard bit: got %d", got)
	}
	if got := ShardIndex(0xABCDEF01, 4); got != 0xA {
		t.Fatalf("4 shard bits: got %x", got)
	}
}

// Small budgets must collapse to fewer shards so each keeps a useful size.
func TestReasonableShardCount(t *testing.T) {
	t.Parallel()

	if n := ReasonableShardCount(0); n != 1 {
		t.Fatalf("zero capacity: want 1 shard, got %d", n)
	}
	if n := ReasonableShardCount(MinShardCapacity * 2); n > 2 {
		t.Fatalf("two shards worth of capacity: got %d", n)
	}
	n := ReasonableShardCount(1 << 40)
	if !IsPowerOfTwo(uint64(n)) || n > MaxShards {
		t.Fatalf("large capacity: got %d", n)
	}
	if want := NextPow2(uint64(2 * runtime.GOMAXPROCS(0))); want <= MaxShards && uint64(n) != want {
		t.Fatalf("large capacity: want %d, got %d", want, n)
	}
}

func TestHash32_Stable(t *testing.T) {
	t.Parallel()

	if Hash32([]byte("block:42")) != Hash32String("block:42") {
		t.Fatal("[]byte and string digests must agree")
	}
	if Hash32([]byte("a")) == Hash32([]byte("b")) {
		t.Fatal("distinct short keys should not collide")
	}
}
