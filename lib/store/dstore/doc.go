// Package dstore implements a replicated key-value store on the Dragonboat
// RAFT consensus library. It satisfies store.IStore, so a namespaced store or
// the lock manager runs on top of it unchanged.
//
// Architecture:
//
//   - Store Client: Serializes every write into one internal.Command and proposes
//     it with SyncPropose. Reads are internal.Query lookups via SyncRead
//     (linearizable) or StaleRead (GetDBInfo only).
//
//   - State Machine: KVStateMachine is a Dragonboat IConcurrentStateMachine that
//     turns each committed command into one db.Txn and applies it to its db.KVDB.
//
// Atomicity:
//
//	A batch put, a batch delete and a swap with side writes are each a single
//	log entry and a single engine transaction. Every replica therefore either
//	applies all of it or none of it. A swap reports whether it was applied in
//	the first byte of the result data.
//
// Error Handling and Retries:
//
//	- System Busy: ErrSystemBusy is retried after a short delay, up to a fixed
//	  number of attempts. When retries run out the call fails with RetCUnavailable.
//	- Timeouts and unready shards fail with RetCUnavailable.
//	- Failures inside the state machine travel back as the RetCode in the result.
//
// Snapshotting:
//
//	PrepareSnapshot takes a db.Snapshot of the engine, SaveSnapshot writes it
//	while Update keeps applying entries. The saved state is exactly the state
//	at the prepared index, entries after it are replayed on top of it.
//	SaveSnapshot and RecoverFromSnapshot use the engine independent snapshot
//	format, so replicas of the same shard may run different engines.
//
// Example:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.KVDB { return memory.NewMemoryDB(nil) }
//	err = nh.StartConcurrentReplica(members, false,
//	    dstore.CreateStateMachineFactory(dbFactory), shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// For single node deployments the lstore package provides the same interface
// without consensus overhead.
package dstore
