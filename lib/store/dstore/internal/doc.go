// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the wire format used to transmit operations
// between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (Put, PutBatch, PutSwap, Delete,
//     DeleteBatch, DeletePrefix). Commands are serialized and proposed to the RAFT
//     cluster, converted into a single db.Txn on every replica and executed atomically.
//     A swap together with its side writes is one log entry.
//
//   - Query System: Defines read operations (Get, GetPrefix, GetDBInfo). Queries
//     are executed locally on the statemachine and therefore do not require serialization.
//
// Command Format:
//
//	- 1 byte: Command type
//	- 1 byte: Flags (bit 0: an old value is present)
//	- Key, OldValue, Value: uint32 length (big endian) + bytes each
//	- uint32 count + count * (key, value) for side writes / batch entries, sorted by key
//	- uint32 count + count * key for batch deletes
//
//	Sorting the map makes the encoding deterministic, so identical commands
//	produce identical log entries on every proposer.
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization. However, this is not
//	typically an issue as the RAFT protocol ensures sequential processing of
//	commands on the state machine.
package internal
