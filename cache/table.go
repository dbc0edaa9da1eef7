package cache

import "bytes"

const minTableBuckets = 16

// handleTable is an intrusive chained hash table. Chains are threaded
// through entry.nextHash, so growing the table only reallocates the bucket
// array. Not safe for concurrent use; the owning shard serializes access.
type handleTable[V any] struct {
	buckets []*entry[V]
	elems   int
}

func newHandleTable[V any]() handleTable[V] {
	return handleTable[V]{buckets: make([]*entry[V], minTableBuckets)}
}

// lookup returns the entry for key, or nil.
func (t *handleTable[V]) lookup(key []byte, hash uint32) *entry[V] {
	return *t.findSlot(key, hash)
}

// insert links e into the table. If an entry with the same key was present
// it is unlinked and returned; the caller decides its fate.
func (t *handleTable[V]) insert(e *entry[V]) *entry[V] {
	slot := t.findSlot(e.key, e.hash)
	old := *slot
	if old != nil {
		e.nextHash = old.nextHash
		old.nextHash = nil
	} else {
		e.nextHash = nil
	}
	*slot = e
	if old == nil {
		t.elems++
		// keep the average chain length at or below one
		if t.elems > len(t.buckets) {
			t.resize()
		}
	}
	return old
}

// remove unlinks and returns the entry for key, or nil.
func (t *handleTable[V]) remove(key []byte, hash uint32) *entry[V] {
	slot := t.findSlot(key, hash)
	e := *slot
	if e != nil {
		*slot = e.nextHash
		e.nextHash = nil
		t.elems--
	}
	return e
}

func (t *handleTable[V]) count() int { return t.elems }

// forEach visits every entry. fn must not mutate the table.
func (t *handleTable[V]) forEach(fn func(e *entry[V])) {
	for _, e := range t.buckets {
		for e != nil {
			next := e.nextHash
			fn(e)
			e = next
		}
	}
}

// findSlot returns the link that points at the matching entry, or the nil
// link at the end of the chain when the key is absent.
func (t *handleTable[V]) findSlot(key []byte, hash uint32) **entry[V] {
	slot := &t.buckets[hash&uint32(len(t.buckets)-1)]
	for *slot != nil && ((*slot).hash != hash || !bytes.Equal(key, (*slot).key)) {
		slot = &(*slot).nextHash
	}
	return slot
}

// resize doubles the bucket array and rehashes every entry in one pass.
func (t *handleTable[V]) resize() {
	buckets := make([]*entry[V], len(t.buckets)*2)
	mask := uint32(len(buckets) - 1)
	for _, e := range t.buckets {
		for e != nil {
			next := e.nextHash
			slot := &buckets[e.hash&mask]
			e.nextHash = *slot
			*slot = e
			e = next
		}
	}
	t.buckets = buckets
}
