package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_CoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, _, err := g.Do(context.Background(), "k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
			results[i] = v
		}(i)
	}

	// Let every goroutine join the flight before the leader finishes.
	deadline := time.Now().Add(time.Second)
	for g.InFlight() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got < 1 || got > n {
		t.Fatalf("unexpected fn call count %d", got)
	}
	for i, v := range results {
		if v != 7 {
			t.Fatalf("result %d = %d, want 7", i, v)
		}
	}
	if g.InFlight() != 0 {
		t.Fatal("flight must be cleared after completion")
	}
}

func TestGroup_PropagatesError(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	boom := errors.New("boom")
	_, shared, err := g.Do(context.Background(), "k", func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if shared {
		t.Fatal("single caller must not report shared")
	}
}

// A cancelled follower returns ctx.Err() while the leader keeps running.
func TestGroup_FollowerCancel(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	started := make(chan struct{})
	release := make(chan struct{})

	leaderDone := make(chan int)
	go func() {
		v, _, _ := g.Do(context.Background(), "k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		leaderDone <- v
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Do(ctx, "k", func() (int, error) { return 2, nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("follower: want context.Canceled, got %v", err)
	}

	close(release)
	if v := <-leaderDone; v != 1 {
		t.Fatalf("leader result %d, want 1", v)
	}
}
