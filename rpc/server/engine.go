package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/engines/bolt"
	"github.com/ValentinKolb/dss/lib/db/engines/memory"
	"github.com/ValentinKolb/dss/lib/db/engines/pebble"
)

// shardDir returns the directory holding the database of a shard
func shardDir(dataDir string, shardID uint64) string {
	return filepath.Join(dataDir, fmt.Sprintf("shard-%d", shardID))
}

// openEngine opens the database engine of a shard. With fresh set, existing
// data of the shard is removed first.
func openEngine(engine, dataDir string, shardID uint64, fresh bool) (db.KVDB, error) {
	impl := db.Implementation(engine)
	if impl == "" {
		impl = db.ImplMemory
	}

	if impl == db.ImplMemory {
		return memory.NewMemoryDB(nil), nil
	}

	if dataDir == "" {
		return nil, fmt.Errorf("engine %s needs a data directory", impl)
	}
	dir := shardDir(dataDir, shardID)
	if fresh {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("failed to reset %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	switch impl {
	case db.ImplPebble:
		return pebble.NewPebbleDB(&pebble.DBOptions{Path: filepath.Join(dir, "pebble")})
	case db.ImplBolt:
		return bolt.NewBoltDB(&bolt.DBOptions{Path: filepath.Join(dir, "bolt.db")})
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}
