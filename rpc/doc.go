// Package rpc is the communication layer of dss. It serves stores and lock
// managers of a server to clients across process and network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network communication with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization (Binary, JSON, GOB).
//
//   - client: Clients implementing store.IStore and lockmgr.ILockManager,
//     optionally scoped to a namespace.
//
//   - server: The server with its adapters for store and lock manager shards.
package rpc
