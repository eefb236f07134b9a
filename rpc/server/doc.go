// Package server implements the RPC server of dss.
// It routes the requests of a transport to shards, where each shard is a store
// served by an adapter that translates messages into store or lock manager calls.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface of all adapters, with the Handle method that
//     executes a request against a store.IStore.
//
//   - NewIStoreServerAdapter: Adapter for the key-value operations of store.IStore.
//
//   - NewLockManagerServerAdapter: Adapter for locking, it builds a
//     lockmgr.ILockManager on top of the shard store.
//
//   - NewRPCServer: Creates a server for a config, a transport and a serializer.
//
// Namespaces:
//
// A request carrying a namespace is executed on a dss.NamespacedStore over the
// shard store, so it only sees keys below "dss.<namespace>.". Requests without a
// namespace work on the raw shard store. The namespaced stores are created on
// first use and cached per adapter.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIStore},
//	    {ShardID: 200, Type: common.ShardTypeLocalILockManager},
//	  },
//	  Engine:        "pebble",
//	  DataDir:       "/var/lib/dss",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	  Transport: common.ServerTransportConfig{
//	    Endpoint: "0.0.0.0:8080",
//	  },
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Shard types, which can be mixed within a single server:
//
//   - ShardTypeLocalIStore: A store on a local database.
//
//   - ShardTypeRemoteIStore: A store replicated with RAFT. The RAFT fields of
//     the config (RTTMillisecond, SnapshotEntries, CompactionOverhead, DataDir,
//     ReplicaID and ClusterMembers) must be set.
//
//   - ShardTypeLocalILockManager: A lock manager on a local store.
//
//   - ShardTypeRemoteILockManager: A lock manager on a replicated store.
//
// Every shard gets its own database of the configured engine (memory, pebble or
// bolt) below DataDir/shard-<id>. Replicated shards start from an empty database
// since the RAFT log restores their state.
//
// Metrics:
//
// The server counts requests in dss_rpc_requests_total{type,code} and records
// their latency in dss_rpc_request_duration_seconds{type}.
//
// Thread Safety:
//
//	The server is safe for concurrent requests across many connections.
//	Serve must be called only once.
package server
