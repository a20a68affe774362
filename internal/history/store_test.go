package history

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fixedClock returns a clock that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(step)
		return t
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "zero", capacity: 0, want: DefaultCapacity},
		{name: "negative", capacity: -3, want: DefaultCapacity},
		{name: "explicit", capacity: 5, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.capacity).Capacity(); got != tt.want {
				t.Errorf("Capacity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecord_NeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	store := New(capacity)

	for i := 1; i <= 25; i++ {
		store.Record("sensors/a", []byte(fmt.Sprintf("%d", i)), 0, false)

		want := i
		if want > capacity {
			want = capacity
		}
		if got := store.Len("sensors/a"); got != want {
			t.Fatalf("after %d inserts Len() = %d, want %d", i, got, want)
		}
	}

	got := store.History(Filter{Topic: "sensors/a"})
	if len(got) != capacity {
		t.Fatalf("History() returned %d records, want %d", len(got), capacity)
	}
	// Newest first: 25, 24, 23, 22
	for i, rec := range got {
		want := fmt.Sprintf("%d", 25-i)
		if rec.Payload != want {
			t.Errorf("History()[%d].Payload = %q, want %q", i, rec.Payload, want)
		}
	}
}

func TestRecord_FIFOEviction(t *testing.T) {
	const capacity = 3
	store := New(capacity)

	for i := 0; i <= capacity; i++ {
		store.Record("t", []byte(fmt.Sprintf("m%d", i)), 1, false)
	}

	got := store.History(Filter{Topic: "t"})
	present := make(map[string]bool)
	for _, rec := range got {
		present[rec.Payload] = true
	}

	if present["m0"] {
		t.Error("first inserted record m0 still present after N+1 inserts")
	}
	for i := 1; i <= capacity; i++ {
		name := fmt.Sprintf("m%d", i)
		if !present[name] {
			t.Errorf("record %s missing, only the first record should be evicted", name)
		}
	}
}

func TestLatest(t *testing.T) {
	store := New(2)

	if _, ok := store.Latest("missing"); ok {
		t.Error("Latest() on unknown topic ok = true, want false")
	}

	for i := 0; i < 7; i++ {
		store.Record("t", []byte(fmt.Sprintf("v%d", i)), 2, i%2 == 0)
	}

	rec, ok := store.Latest("t")
	if !ok {
		t.Fatal("Latest() ok = false, want true")
	}
	if rec.Payload != "v6" {
		t.Errorf("Latest().Payload = %q, want %q", rec.Payload, "v6")
	}
	if rec.QoS != 2 || !rec.Retained {
		t.Errorf("Latest() qos/retain = %d/%v, want 2/true", rec.QoS, rec.Retained)
	}
}

func TestHistory_LastThreeNewestFirst(t *testing.T) {
	store := New(3)
	store.now = fixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), time.Second)

	for i := 1; i <= 5; i++ {
		store.Record("classroom/temperature", []byte(fmt.Sprintf(`{"temperature":%d}`, 20+i)), 0, false)
	}

	got := store.History(Filter{Topic: "classroom/temperature"})
	want := []string{`{"temperature":25}`, `{"temperature":24}`, `{"temperature":23}`}
	if len(got) != len(want) {
		t.Fatalf("History() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Payload != want[i] {
			t.Errorf("History()[%d] = %q, want %q", i, got[i].Payload, want[i])
		}
	}
}

func TestHistory_MergesTopicsAndFilters(t *testing.T) {
	store := New(10)
	store.now = fixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), time.Minute)

	store.Record("classroom/temperature", []byte("t1"), 0, false) // 09:00
	store.Record("classroom/humidity", []byte("h1"), 0, false)    // 09:01
	store.Record("office/temperature", []byte("o1"), 0, false)    // 09:02
	store.Record("classroom/temperature", []byte("t2"), 0, false) // 09:03

	t.Run("all topics newest first", func(t *testing.T) {
		got := store.History(Filter{})
		want := []string{"t2", "o1", "h1", "t1"}
		assertPayloads(t, got, want)
	})

	t.Run("substring topic match", func(t *testing.T) {
		got := store.History(Filter{Topic: "temperature"})
		want := []string{"t2", "o1", "t1"}
		assertPayloads(t, got, want)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		got := store.History(Filter{Topic: "classroom/#"})
		if len(got) != 0 {
			t.Errorf("History() with wildcard returned %d records, want 0", len(got))
		}
	})

	t.Run("limit", func(t *testing.T) {
		got := store.History(Filter{Limit: 2})
		assertPayloads(t, got, []string{"t2", "o1"})
	})

	t.Run("since", func(t *testing.T) {
		// The next clock reading is 09:04; a 2m30s window keeps 09:02 and 09:03.
		got := store.History(Filter{Since: 150 * time.Second})
		assertPayloads(t, got, []string{"t2", "o1"})
	})
}

func TestHistory_TiesKeepInsertionOrder(t *testing.T) {
	store := New(10)
	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	store.Append(Record{Topic: "a", Payload: "first", ReceivedAt: at})
	store.Append(Record{Topic: "b", Payload: "second", ReceivedAt: at})
	store.Append(Record{Topic: "a", Payload: "third", ReceivedAt: at})

	got := store.History(Filter{})
	assertPayloads(t, got, []string{"third", "second", "first"})
}

func TestRecord_ConcurrentWritersSameTopicAgree(t *testing.T) {
	store := New(5)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	store.now = func() time.Time {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			// The first writer takes its timestamp and stalls before storing.
			close(entered)
			<-release
		}
		return base.Add(time.Duration(n) * time.Second)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.Record("t", []byte("first"), 0, false)
	}()
	<-entered

	secondDone := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(secondDone)
		store.Record("t", []byte("second"), 0, false)
	}()

	// The second writer must not overtake the first; give it the chance.
	select {
	case <-secondDone:
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	latest, ok := store.Latest("t")
	if !ok {
		t.Fatal("Latest() ok = false, want true")
	}
	got := store.History(Filter{Topic: "t"})
	if len(got) != 2 {
		t.Fatalf("History() len = %d, want 2", len(got))
	}
	if latest.Payload != got[0].Payload {
		t.Errorf("Latest().Payload = %q, History()[0].Payload = %q, want equal", latest.Payload, got[0].Payload)
	}
	if got[0].ReceivedAt.Before(got[1].ReceivedAt) {
		t.Errorf("History() not newest first: %v before %v", got[0].ReceivedAt, got[1].ReceivedAt)
	}
}

func TestRecord_CopiesPayload(t *testing.T) {
	store := New(5)
	buf := []byte("original")
	store.Record("t", buf, 0, false)
	copy(buf, "mutated!")

	rec, _ := store.Latest("t")
	if rec.Payload != "original" {
		t.Errorf("Latest().Payload = %q, want %q", rec.Payload, "original")
	}
}

func TestObserver(t *testing.T) {
	store := New(5)

	var seen []string
	store.SetObserver(func(rec Record) {
		seen = append(seen, rec.Topic+"="+rec.Payload)
	})

	store.Record("a", []byte("1"), 0, false)
	store.Record("b", []byte("2"), 0, false)
	store.SetObserver(nil)
	store.Record("c", []byte("3"), 0, false)

	if len(seen) != 2 || seen[0] != "a=1" || seen[1] != "b=2" {
		t.Errorf("observer saw %v, want [a=1 b=2]", seen)
	}
}

func TestTopics(t *testing.T) {
	store := New(5)
	store.Record("z", nil, 0, false)
	store.Record("a", nil, 0, false)
	store.Record("z", nil, 0, false)

	got := store.Topics()
	if len(got) != 2 || got[0] != "a" || got[1] != "z" {
		t.Errorf("Topics() = %v, want [a z]", got)
	}
	if store.TopicCount() != 2 {
		t.Errorf("TopicCount() = %d, want 2", store.TopicCount())
	}
}

func TestStore_ConcurrentWritersAndReaders(t *testing.T) {
	const (
		capacity = 8
		writers  = 6
		perTopic = 200
	)
	store := New(capacity)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			topic := fmt.Sprintf("topic/%d", w%3)
			for i := 0; i < perTopic; i++ {
				store.Record(topic, []byte(fmt.Sprintf("%d-%d", w, i)), 1, false)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, rec := range store.History(Filter{}) {
				if rec.Topic == "" || rec.Payload == "" {
					t.Errorf("observed partial record %+v", rec)
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done

	for i := 0; i < 3; i++ {
		topic := fmt.Sprintf("topic/%d", i)
		if got := store.Len(topic); got != capacity {
			t.Errorf("Len(%q) = %d, want %d", topic, got, capacity)
		}
	}
}

func assertPayloads(t *testing.T, got []Record, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Payload != want[i] {
			t.Errorf("record[%d].Payload = %q, want %q", i, got[i].Payload, want[i])
		}
	}
}
