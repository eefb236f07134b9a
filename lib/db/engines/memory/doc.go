// Package memory implements the db.KVDB interface as an ordered in-memory
// database on top of a B-tree (github.com/google/btree).
//
// Entries are kept sorted by key, so prefix reads and prefix deletes are a
// single ordered walk starting at the prefix instead of a full scan.
//
// Concurrency:
//
//	Reads share a RWMutex, every transaction holds it exclusively. This makes
//	compare-and-swap with side writes atomic without any further protocol: a
//	reader either sees the state before a transaction or after it.
//
// Persistence:
//
//	Data lives in memory only. Save and Load use the engine independent
//	snapshot format of the util package, which is what the raft state machine
//	uses for its snapshots.
//
// Usage Example:
//
//	factory := func() db.KVDB { return memory.NewMemoryDB(nil) }
//	s := lstore.NewLocalStore(factory)
package memory
