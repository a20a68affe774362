package history

import "sync"

// ring is a fixed-capacity FIFO buffer of records for one topic.
// Callers hold mu while calling any method.
type ring struct {
	mu   sync.RWMutex
	buf  []Record
	head int // index of the oldest record
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Record, capacity)}
}

// push appends rec, overwriting the oldest record when full.
func (r *ring) push(rec Record) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = rec
		r.size++
		return
	}
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
}

// last returns the newest record.
func (r *ring) last() (Record, bool) {
	if r.size == 0 {
		return Record{}, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// snapshot copies the records out in chronological order.
func (r *ring) snapshot() []Record {
	out := make([]Record, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
