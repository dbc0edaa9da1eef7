package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// deleteCounter records how many times each value id was passed to a deleter.
type deleteCounter struct {
	mu   sync.Mutex
	seen map[int]int
}

func newDeleteCounter() *deleteCounter { return &deleteCounter{seen: make(map[int]int)} }

func (d *deleteCounter) deleter(_ []byte, id int) {
	d.mu.Lock()
	d.seen[id]++
	d.mu.Unlock()
}

// A mixed workload of concurrent Insert/InsertHandle/Lookup/Ref/Release/Erase
// on random keys. Should pass under `-race` without detector reports, and
// every inserted value must be deleted exactly once after Close.
func TestRace_Mixed(t *testing.T) {
	for _, strict := range []bool{false, true} {
		t.Run("strict="+strconv.FormatBool(strict), func(t *testing.T) {
			runMixedWorkload(t, strict)
		})
	}
}

func runMixedWorkload(t *testing.T, strict bool) {
	dc := newDeleteCounter()
	c := New[int](Options[int]{
		Capacity:            4096,
		Shards:              8,
		StrictCapacityLimit: strict,
		HighPriPoolRatio:    0.5,
	})

	workers := 4 * runtime.GOMAXPROCS(0)
	const keyspace = 512
	deadline := time.Now().Add(time.Second)

	var nextID atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		id := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			var held []*Handle[int]
			for time.Now().Before(deadline) {
				key := []byte("k:" + strconv.Itoa(r.Intn(keyspace)))
				charge := uint64(1 + r.Intn(64))
				pri := PriorityLow
				if r.Intn(4) == 0 {
					pri = PriorityHigh
				}

				switch op := r.Intn(100); {
				case op < 5:
					c.Erase(key)
				case op < 15:
					v := int(nextID.Add(1))
					_ = c.Insert(key, v, charge, dc.deleter, pri)
				case op < 25:
					v := int(nextID.Add(1))
					if h, err := c.InsertHandle(key, v, charge, dc.deleter, pri); err == nil {
						held = append(held, h)
					}
				case op < 30 && len(held) > 0:
					h := held[len(held)-1]
					if c.Ref(h) {
						c.Release(h)
					}
				case op < 35 && len(held) > 0:
					c.ReleaseAndErase(held[0])
					held = held[1:]
				default:
					if h := c.Lookup(key); h != nil {
						_ = h.Value()
						held = append(held, h)
					}
				}

				// keep a small working set pinned
				for len(held) > 4 {
					c.Release(held[0])
					held = held[1:]
				}
			}
			for _, h := range held {
				c.Release(h)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if c.PinnedUsage() != 0 {
		t.Fatalf("pinned usage = %d after all handles released", c.PinnedUsage())
	}
	if strict && c.Usage() > c.Capacity() {
		t.Fatalf("strict cache usage %d exceeds capacity %d", c.Usage(), c.Capacity())
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 || c.Usage() != 0 {
		t.Fatalf("after Close len=%d usage=%d", c.Len(), c.Usage())
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()
	total := int(nextID.Load())
	if len(dc.seen) != total {
		t.Fatalf("deleted %d distinct values, inserted %d", len(dc.seen), total)
	}
	for id, n := range dc.seen {
		if n != 1 {
			t.Fatalf("value %d deleted %d times", id, n)
		}
	}
}

// Config changes racing with traffic must keep shard bookkeeping consistent.
func TestRace_ConfigChanges(t *testing.T) {
	c := New[int](Options[int]{Capacity: 1 << 14, Shards: 4})
	t.Cleanup(func() { _ = c.Close() })

	stop := make(chan struct{})
	var g errgroup.Group
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			i := 0
			for {
				select {
				case <-stop:
					return nil
				default:
				}
				key := []byte(strconv.Itoa(i % 1000))
				_ = c.Insert(key, i, uint64(1+i%32), nil, Priority(i%2))
				if h := c.Lookup(key); h != nil {
					c.Release(h)
				}
				i++
			}
		})
	}
	g.Go(func() error {
		for i := 0; i < 200; i++ {
			c.SetCapacity(uint64(1<<12 + i*64))
			c.SetStrictCapacityLimit(i%2 == 0)
			if err := c.SetHighPriorityPoolRatio(float64(i%10) / 10); err != nil {
				return err
			}
			_ = c.Usage()
			_ = c.HighPriorityPoolUsage()
		}
		close(stop)
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	cc := c.(*cache[int])
	for i, s := range cc.shards {
		s.mu.Lock()
		if s.usage < s.lru.usage || s.lru.highPriUsage > s.lru.usage {
			t.Errorf("shard %d: usage=%d lru=%d high=%d", i, s.usage, s.lru.usage, s.lru.highPriUsage)
		}
		s.mu.Unlock()
	}
}
