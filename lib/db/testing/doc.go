// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (guarded transactions,
//     prefix reads and deletes, snapshot round trips, concurrent swaps)
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Every engine of this module runs the same suite, so the raft state machine
// can rely on identical semantics no matter which engine backs a shard.
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return memory.NewMemoryDB(nil)
//	}
//
//	dbtesting.RunKVDBTests(t, "Memory", factory)
//	dbtesting.RunKVDBBenchmarks(b, "Memory", factory)
package testing
