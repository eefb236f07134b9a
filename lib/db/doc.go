// Package db provides a standardized interface for ordered key-value database
// implementations used as the physical layer of the dynamic status store.
//
// The package focuses on:
//   - A unified interface for string key-value operations
//   - A single atomic write primitive (Txn) with an optional compare guard
//   - Feature discovery through capability flags
//   - Standardized snapshot operations
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     Reads are exact lookups (Get) and prefix range reads (GetPrefix). Every write,
//     from a single put to a compare-and-swap with side writes, is expressed as a Txn
//     and handed to Apply.
//
//   - Txn and Compare: A transaction bundles puts, deletes and prefix deletes. When a
//     Compare guard is present the transaction is applied only if the guarded key holds
//     the expected value (or is absent, for a nil expected value). Implementations must
//     apply a transaction atomically. No reader may observe a partially applied one.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports key counts, estimated
//     size, implementation type and implementation specific metadata.
//
// Related Packages:
//
//   - engines/memory: ordered in-memory engine on a B-tree
//   - engines/pebble: persistent engine on cockroachdb/pebble
//   - engines/bolt: persistent engine on bbolt
//   - util: the snapshot format shared by all engines
//   - testing: a conformance suite every engine runs in its tests
package db
