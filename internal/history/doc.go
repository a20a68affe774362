// Package history keeps a bounded, in-memory record of recently received
// MQTT messages, indexed by the literal topic each message arrived on.
//
// Every topic owns a fixed-capacity ring buffer. When the ring is full the
// oldest record is overwritten, so inserts are O(1) and a topic never holds
// more than the configured capacity (default 20).
//
// # Concurrency
//
// Writers for different topics never contend: each ring has its own lock and
// the topic index is only write-locked when a topic is seen for the first
// time. Readers copy records out under the ring's read lock, so a reader
// never observes a partially written record.
//
// # Usage
//
//	store := history.New(20)
//	store.Record("classroom/temperature", payload, 1, false)
//
//	latest, ok := store.Latest("classroom/temperature")
//	recent := store.History(history.Filter{Topic: "classroom", Limit: 10})
//
// History is not persisted: it is rebuilt from live traffic after a restart.
package history
