// Package common provides the data structures shared by the RPC client and
// server of the dynamic status store.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Logging integrated with Dragonboat and backed by zap
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: Core data structure of every request and response. A request
//     may carry a namespace; the server then executes it on a dss.NamespacedStore
//     of that namespace. Errors travel as text plus store.RetCode so the client
//     can rebuild a *store.Error (see MessageError).
//
//   - MessageType: Enumeration of all supported operations, split into
//     key-value operations, lock operations and control messages.
//
//   - ServerConfig: Configuration of a server node, including shard layout,
//     storage engine, RAFT parameters and transport settings.
//
//   - ClientConfig: Connection parameters, timeouts and retry behavior of clients.
//
//   - Logger: InitLoggers installs a zap backed factory for Dragonboat's named
//     loggers, so the module and Dragonboat share one log format.
package common
