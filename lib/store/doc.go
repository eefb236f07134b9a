// Package store provides the high-level interface for string key-value storage
// that the namespacing layer (package dss) and the lock manager are built on.
// It serves as an abstraction layer over the lower-level db.KVDB implementations,
// mapping every operation onto one atomic engine transaction and reporting
// failures with typed return codes.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining put, batch put,
//     compare-and-swap (optionally with side writes), get, prefix get, delete,
//     batch delete and prefix delete. All implementations share this interface,
//     so applications can switch storage backends without code changes.
//
//   - Error System: *Error carries a RetCode, a message and an optional cause.
//     errors.Is matches on the code, so callers can branch on
//     store.ErrInvalidArgument, store.ErrIntegrityViolation or store.ErrUnavailable
//     without string matching. Codes survive the RPC layer.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances.
//
// Implementations:
//
//	- Local Store (lstore): runs the operations directly against a db.KVDB.
//	  Available in the "github.com/ValentinKolb/dss/lib/store/lstore" package.
//
//	- Distributed Store (dstore): replicates every write through the Dragonboat
//	  RAFT library. A batch or a swap with side writes is one log entry, so it
//	  is atomic on every replica.
//	  Available in the "github.com/ValentinKolb/dss/lib/store/dstore" package.
//
//	- Namespaced Store (dss): wraps any IStore and confines it to one namespace.
//	  Available in the "github.com/ValentinKolb/dss/lib/dss" package.
//
//	- RPC Store (rpc/client): talks to a remote dss server.
package store
