// Package bolt implements the db.KVDB interface on top of bbolt
// (go.etcd.io/bbolt), an embedded single file B+ tree.
//
// All keys live in one bucket. Every transaction runs inside one bbolt
// read-write transaction, so the compare guard, prefix deletes, deletes and
// puts commit or roll back together. Reads use read-only transactions and
// copy values out before the transaction ends.
package bolt
