// Package registry loads each module at most once per process.
//
// A Registry maps module names to load slots. The registry lock is held
// only long enough to find or create a slot; the slot's own lock is held
// for the whole resolve, build and open sequence, so concurrent callers for
// one module wait for the first and then share its result, while loads of
// different modules proceed independently.
//
// Default returns the process-wide Registry. It is stored under a fixed key
// in package processlocal, so a host and the plugins it opens always see
// the same table.
package registry
