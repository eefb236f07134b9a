// Package testing provides the behavioural test suite for store.IStore
// implementations. The local store, the namespaced store and the RPC client
// all run it, so they are interchangeable for callers.
//
// Example usage:
//
//	storetesting.RunIStoreTests(t, "LocalStore", func() store.IStore {
//		return lstore.NewLocalStore(func() db.KVDB { return memory.NewMemoryDB(nil) })
//	})
package testing
