package cache

import "errors"

var (
	// ErrCapacityExceeded is returned by Insert under a strict capacity limit
	// when eviction cannot free enough room. The value's deleter has already
	// run when the caller sees this error.
	ErrCapacityExceeded = errors.New("cache: insert failed, capacity exceeded")

	// ErrClosed is returned by Insert and LookupOrLoad after Close.
	ErrClosed = errors.New("cache: closed")

	// ErrNoLoader is returned by LookupOrLoad when Options.Loader is nil.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrInvalidRatio is returned for a high-priority pool ratio outside [0, 1].
	ErrInvalidRatio = errors.New("cache: high priority pool ratio must be in [0, 1]")

	// ErrLoadEvicted is returned by LookupOrLoad when a freshly loaded value
	// was evicted again before it could be pinned.
	ErrLoadEvicted = errors.New("cache: loaded value evicted before use")
)
