package registry

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of one module's slot.
type State int32

const (
	Empty State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "empty"
	}
}

// slot holds one module's outcome. handle and err are written once, by the
// goroutine that moved the slot out of Empty, while holding mu. state is
// atomic so State can be read without waiting for a load in progress.
type slot struct {
	mu     sync.Mutex
	state  atomic.Int32
	handle any
	err    error
}

func (s *slot) current() State {
	return State(s.state.Load())
}

func (s *slot) set(st State) {
	s.state.Store(int32(st))
}
