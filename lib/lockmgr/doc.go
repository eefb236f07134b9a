// Package lockmgr implements named locks on top of any store.IStore. It is
// the main consumer of the compare-and-swap primitive: a lock is a key whose
// value is the ID of its owner.
//
// The lockmgr only ever stores in the provided IStore and has no other internal
// state. Therefore it is safe to be created multiple times on the same store.
// Handing it a dss.NamespacedStore keeps the locks of one namespace apart from
// every other namespace.
//
// Implementation Approach:
//
//	- Lock Acquisition: PutSwap(key, nil, ownerID) succeeds only if the key
//	  does not exist. If the key holds the free marker (the empty string) of
//	  an earlier release, PutSwap(key, "", ownerID) takes it over. Owner IDs
//	  are random UUIDs (github.com/google/uuid).
//
//	- Safe Release: PutSwap(key, ownerID, "") only succeeds for the owner.
//	  The key is kept with the free marker instead of being deleted, so there
//	  is no window between checking ownership and deleting in which another
//	  owner's lock could be removed.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(namespacedStore)
//
//	acquired, ownerID, err := locks.AcquireLock("resource.123")
//	if err != nil {
//	    // Handle error
//	}
//	if acquired {
//	    defer locks.ReleaseLock("resource.123", ownerID)
//	    // Use the resource safely
//	}
//
// Thread Safety:
//
//	The lockmgr is as thread-safe as the underlying store.IStore
//	implementation. With dstore it provides distributed locking across a cluster.
package lockmgr
