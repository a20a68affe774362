package history

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of records kept per topic when no capacity
// is configured.
const DefaultCapacity = 20

// Record is a single received message.
//
// Records are values: the payload is stored as a string so a Record handed
// to a caller can never be mutated behind the store's back.
type Record struct {
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"timestamp"`
	QoS        byte      `json:"qos"`
	Retained   bool      `json:"retain"`

	// seq is the store-wide insertion sequence, used to break timestamp ties.
	seq uint64
}

// Filter selects records for History.
type Filter struct {
	// Topic matches any topic that contains it (equality or substring, not
	// MQTT wildcard matching). Empty matches every topic.
	Topic string

	// Limit caps the number of records returned. Zero or negative means unlimited.
	Limit int

	// Since excludes records older than now-Since. Zero disables the time filter.
	Since time.Duration
}

// Observer is invoked after every insert, outside of any store lock.
type Observer func(rec Record)

// Store is a topic-indexed collection of bounded ring buffers.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	capacity int

	topics   map[string]*ring
	topicsMu sync.RWMutex

	// seq is guarded by seqMu so that sequence order matches insertion order
	// within every ring.
	seq   uint64
	seqMu sync.Mutex

	observer   Observer
	observerMu sync.RWMutex

	now func() time.Time
}

// New creates a Store that keeps at most capacity records per topic.
// A capacity below 1 falls back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		topics:   make(map[string]*ring),
		now:      time.Now,
	}
}

// SetObserver registers a callback invoked after each insert.
// Pass nil to remove it.
func (s *Store) SetObserver(observer Observer) {
	s.observerMu.Lock()
	s.observer = observer
	s.observerMu.Unlock()
}

// Capacity returns the per-topic record limit.
func (s *Store) Capacity() int {
	return s.capacity
}

// Record builds a Record stamped with the current time and appends it.
//
// The payload is copied, so the caller may reuse its buffer.
func (s *Store) Record(topic string, payload []byte, qos byte, retained bool) Record {
	return s.Append(Record{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
}

// Append inserts rec at the tail of its topic's ring, evicting the oldest
// record when the ring is full. A zero ReceivedAt is replaced by the current
// time. It returns the stored record.
//
// The timestamp is taken under the ring lock together with the sequence
// number, so ring order and ReceivedAt order agree for concurrent writers.
func (s *Store) Append(rec Record) Record {
	r := s.ringFor(rec.Topic)

	r.mu.Lock()
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = s.now()
	}
	rec.seq = s.nextSeq()
	r.push(rec)
	r.mu.Unlock()

	s.observerMu.RLock()
	observer := s.observer
	s.observerMu.RUnlock()
	if observer != nil {
		observer(rec)
	}

	return rec
}

// Latest returns the most recent record for the exact topic.
func (s *Store) Latest(topic string) (Record, bool) {
	s.topicsMu.RLock()
	r, ok := s.topics[topic]
	s.topicsMu.RUnlock()
	if !ok {
		return Record{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last()
}

// History returns the records matching filter, newest first.
//
// Records are ordered by ReceivedAt descending; records with equal
// timestamps keep reverse insertion order.
func (s *Store) History(filter Filter) []Record {
	var cutoff time.Time
	if filter.Since > 0 {
		cutoff = s.now().Add(-filter.Since)
	}

	s.topicsMu.RLock()
	rings := make([]*ring, 0, len(s.topics))
	for topic, r := range s.topics {
		if filter.Topic != "" && !strings.Contains(topic, filter.Topic) {
			continue
		}
		rings = append(rings, r)
	}
	s.topicsMu.RUnlock()

	var out []Record
	for _, r := range rings {
		r.mu.RLock()
		for _, rec := range r.snapshot() {
			if !cutoff.IsZero() && rec.ReceivedAt.Before(cutoff) {
				continue
			}
			out = append(out, rec)
		}
		r.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].seq > out[j].seq
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Len returns the number of records currently held for the exact topic.
func (s *Store) Len(topic string) int {
	s.topicsMu.RLock()
	r, ok := s.topics[topic]
	s.topicsMu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Topics returns every topic that has received at least one message, sorted.
func (s *Store) Topics() []string {
	s.topicsMu.RLock()
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	s.topicsMu.RUnlock()

	sort.Strings(topics)
	return topics
}

// TopicCount returns the number of topics with history.
func (s *Store) TopicCount() int {
	s.topicsMu.RLock()
	defer s.topicsMu.RUnlock()
	return len(s.topics)
}

// ringFor returns the ring for topic, creating it on first use.
func (s *Store) ringFor(topic string) *ring {
	s.topicsMu.RLock()
	r, ok := s.topics[topic]
	s.topicsMu.RUnlock()
	if ok {
		return r
	}

	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	if r, ok = s.topics[topic]; ok {
		return r
	}
	r = newRing(s.capacity)
	s.topics[topic] = r
	return r
}

func (s *Store) nextSeq() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq++
	return s.seq
}
