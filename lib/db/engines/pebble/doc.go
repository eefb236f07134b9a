// Package pebble implements the db.KVDB interface on top of CockroachDB's
// Pebble LSM engine (github.com/cockroachdb/pebble).
//
// Transactions are staged into a pebble.Batch and committed in one step.
// Prefix deletes become range tombstones ([prefix, PrefixUpperBound(prefix))),
// prefix reads are bounded iterators. A single writer mutex makes the compare
// guard and the commit one atomic step.
//
// Save iterates a pebble snapshot and writes the engine independent snapshot
// format, so a raft snapshot taken from a pebble replica can be loaded into a
// memory or bolt replica and vice versa.
//
// Usage Example:
//
//	kv, err := pebble.NewPebbleDB(&pebble.DBOptions{Path: "/var/lib/dss/shard-1"})
//	if err != nil {
//		return err
//	}
//	defer kv.Close()
package pebble
