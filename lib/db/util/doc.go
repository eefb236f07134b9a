// Package util provides helpers shared by the db engines: the engine independent
// snapshot format (used for raft snapshots and backups), key range helpers for
// prefix scans and a seeded FNV-1a string hash (used to derive replica ids).
package util
