package cache

import (
	"strconv"
	"testing"
)

func newTestEntry(key string, hash uint32, charge uint64) *entry[int] {
	return &entry[int]{key: []byte(key), hash: hash, charge: charge, refs: 1, flags: flagInCache}
}

func TestHandleTable_InsertLookupRemove(t *testing.T) {
	t.Parallel()

	tbl := newHandleTable[int]()
	a := newTestEntry("a", 1, 0)
	if old := tbl.insert(a); old != nil {
		t.Fatalf("first insert must not displace anything, got %q", old.key)
	}
	if got := tbl.lookup([]byte("a"), 1); got != a {
		t.Fatal("lookup must return the inserted entry")
	}
	if got := tbl.lookup([]byte("a"), 2); got != nil {
		t.Fatal("lookup with a different hash must miss")
	}
	if got := tbl.remove([]byte("a"), 1); got != a {
		t.Fatal("remove must return the entry")
	}
	if tbl.count() != 0 || tbl.lookup([]byte("a"), 1) != nil {
		t.Fatal("table must be empty after remove")
	}
	if tbl.remove([]byte("a"), 1) != nil {
		t.Fatal("removing an absent key must return nil")
	}
}

// Replacing a key hands the old entry back and keeps the chain intact.
func TestHandleTable_ReplaceReturnsOld(t *testing.T) {
	t.Parallel()

	tbl := newHandleTable[int]()
	// all three share bucket 7
	x := newTestEntry("x", 7, 0)
	y1 := newTestEntry("y", 7, 0)
	z := newTestEntry("z", 7, 0)
	tbl.insert(x)
	tbl.insert(y1)
	tbl.insert(z)

	y2 := newTestEntry("y", 7, 0)
	if old := tbl.insert(y2); old != y1 {
		t.Fatal("insert must return the displaced same-key entry")
	}
	if y1.nextHash != nil {
		t.Fatal("displaced entry must be unlinked")
	}
	if tbl.count() != 3 {
		t.Fatalf("count = %d, want 3", tbl.count())
	}
	for _, e := range []*entry[int]{x, y2, z} {
		if tbl.lookup(e.key, 7) != e {
			t.Fatalf("%q unreachable after replace", e.key)
		}
	}
}

// Growing past one entry per bucket doubles the table without losing entries.
func TestHandleTable_ResizeKeepsEntries(t *testing.T) {
	t.Parallel()

	tbl := newHandleTable[int]()
	const n = 1000
	entries := make([]*entry[int], n)
	for i := 0; i < n; i++ {
		k := "k" + strconv.Itoa(i)
		entries[i] = newTestEntry(k, uint32(i)*2654435761, 0)
		tbl.insert(entries[i])
	}
	if tbl.count() != n {
		t.Fatalf("count = %d, want %d", tbl.count(), n)
	}
	if len(tbl.buckets) < n {
		t.Fatalf("buckets = %d, average chain length must stay <= 1", len(tbl.buckets))
	}
	if len(tbl.buckets)&(len(tbl.buckets)-1) != 0 {
		t.Fatal("bucket count must stay a power of two")
	}
	for _, e := range entries {
		if tbl.lookup(e.key, e.hash) != e {
			t.Fatalf("%q lost during resize", e.key)
		}
	}

	seen := 0
	tbl.forEach(func(*entry[int]) { seen++ })
	if seen != n {
		t.Fatalf("forEach visited %d, want %d", seen, n)
	}
}
