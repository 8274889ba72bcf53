package messenger

import (
	"errors"
	"sync"
)

// ErrNoFreeRequestID is returned when every one of the 127 request ID
// slots for a connection is currently held (spec.md §4.2 "Request ID
// assignment").
var ErrNoFreeRequestID = errors.New("messenger: no free request IDs")

// requestIDAllocator hands out the 7-bit, 1..127 request IDs used to
// correlate an outbound Property/Profile-details request with its reply,
// wrapping and skipping IDs currently in use (spec.md §4.2).
type requestIDAllocator struct {
	mu    sync.Mutex
	inUse [128]bool
	next  byte
}

func newRequestIDAllocator() *requestIDAllocator {
	return &requestIDAllocator{next: 0}
}

func (a *requestIDAllocator) allocate() (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < 127; i++ {
		a.next++
		if a.next == 0 || a.next > 127 {
			a.next = 1
		}
		if !a.inUse[a.next] {
			a.inUse[a.next] = true
			return a.next, nil
		}
	}
	return 0, ErrNoFreeRequestID
}

func (a *requestIDAllocator) release(id byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id > 0 && id < 128 {
		a.inUse[id] = false
	}
}

// count returns how many of the 127 request ID slots are currently
// allocated, for the midici_pending_requests metric (spec.md §4.11).
func (a *requestIDAllocator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for i := 1; i <= 127; i++ {
		if a.inUse[i] {
			n++
		}
	}
	return n
}
