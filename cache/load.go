package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// maxLoadAttempts bounds how often LookupOrLoad reloads a key whose fresh
// value keeps getting evicted before it can be pinned.
const maxLoadAttempts = 3

// LookupOrLoad returns a pinned handle for key; on a miss it loads the value
// via Options.Loader, coalescing concurrent loads for the same key.
//
// The leader inserts the loaded value unpinned with Options.Deleter and
// Options.LoadPriority, then every waiter pins it with its own Lookup.
func (c *cache[V]) LookupOrLoad(ctx context.Context, key []byte) (*Handle[V], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if h := c.Lookup(key); h != nil {
		return h, nil
	}
	if c.opt.Loader == nil {
		return nil, ErrNoLoader
	}

	// The miss above is the only one counted for this call; the re-checks
	// below go through c.lookup without recording.
	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		_, shared, err := c.sf.Do(ctx, string(key), func() (struct{}, error) {
			// double-check after joining the flight
			if h := c.lookup(key, false); h != nil {
				c.Release(h)
				return struct{}{}, nil
			}
			v, charge, err := c.opt.Loader(ctx, key)
			if err != nil {
				return struct{}{}, fmt.Errorf("cache: load %q: %w", key, err)
			}
			err = c.Insert(key, v, charge, c.opt.Deleter, c.opt.LoadPriority)
			if errors.Is(err, ErrClosed) && c.opt.Deleter != nil {
				// nobody else owns the loaded value
				c.opt.Deleter(key, v)
			}
			return struct{}{}, err
		})
		if shared {
			c.log.Debug("load coalesced", slog.Int("key_len", len(key)), slog.Int("attempt", attempt))
		}
		if err != nil {
			return nil, err
		}
		if c.closed.Load() {
			return nil, ErrClosed
		}
		if h := c.lookup(key, false); h != nil {
			return h, nil
		}
	}
	return nil, ErrLoadEvicted
}
