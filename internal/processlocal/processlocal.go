// Package processlocal stores values that must exist exactly once per
// process, keyed by a stable, well-known name.
//
// The Go runtime maps each package into the address space once, even when
// the package is linked into both the host executable and plugins opened
// later with package plugin; all images then share this package's table.
// Keying by name rather than by a package-level variable in each consumer
// keeps that guarantee explicit: whoever asks for the same key gets the
// same value, no matter which image the caller was compiled into.
package processlocal

import (
	"fmt"
	"sync"
)

var (
	mu     sync.Mutex
	values = make(map[string]any)
)

// Get returns the value stored under key, creating it with init on first
// use. init runs at most once per key, under the table lock, so it must not
// call Get itself.
//
// Get panics if key already holds a value of another type.
func Get[T any](key string, init func() T) T {
	mu.Lock()
	defer mu.Unlock()

	if v, ok := values[key]; ok {
		t, ok := v.(T)
		if !ok {
			panic(fmt.Sprintf("processlocal: key %q holds %T, not %T", key, v, t))
		}
		return t
	}

	v := init()
	values[key] = v
	return v
}
