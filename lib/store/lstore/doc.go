// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB
// implementation: every write becomes exactly one db.Txn, every read one
// engine lookup.
//
// Implementation Details:
//
//   - Atomic Writes: Batches and swaps are single transactions, so a swap with
//     side writes either writes the swapped key and every side write or nothing.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the features the transaction needs.
//     Unsupported operations return RetCUnsupportedOperation.
//
//   - Error Mapping: Empty keys fail with RetCInvalidArgument before the engine
//     is touched, engine failures are wrapped as RetCInternalError.
//
// Thread Safety:
//
//	All operations are thread-safe as long as the underlying db.KVDB is, which
//	holds for every engine in this module.
//
// Usage Example:
//
//	factory := func() db.KVDB { return memory.NewMemoryDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	ok, err := s.PutSwap("lock", nil, "owner-1")
//
// For distributed scenarios requiring consensus across multiple nodes, consider
// using the dstore package instead, which provides a RAFT-based implementation
// of the same interface.
package lstore
