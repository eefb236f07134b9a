// Package client implements the RPC clients of dss.
// It provides implementations of the store.IStore and lockmgr.ILockManager interfaces
// that forward every operation to a shard of a remote server.
//
// Key Components:
//
//   - NewRPCStore: Creates a client implementing store.IStore. With a namespace
//     the client works on the namespaced view of the shard, so it sees and
//     writes only keys below "dss.<namespace>.".
//
//   - NewRPCLockMgr: Creates a client implementing lockmgr.ILockManager. Locks
//     are scoped by namespace the same way.
//
// Errors:
//
// Errors of the server arrive as *store.Error with the code the server sent, so
// errors.Is(err, store.ErrIntegrityViolation) works across the wire. Transport
// failures are reported with store.RetCUnavailable.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	runs, _ := client.NewRPCStore(100, "runs", config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	runs.Put("run-1", "started")
//	value, found, _ := runs.Get("run-1")
//
//	locks, _ := client.NewRPCLockMgr(200, "runs", config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if ok, ownerID, _ := locks.AcquireLock("run-1"); ok {
//	  defer locks.ReleaseLock("run-1", ownerID)
//	}
//
// Thread Safety:
//
//	All clients are safe for concurrent use from multiple goroutines.
package client
