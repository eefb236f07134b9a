package bolt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	bolt "go.etcd.io/bbolt"
)

var log = logger.GetLogger("db/bolt")

// bucket holds every key of the database
var bucket = []byte("kv")

// Compile-time interface check.
var _ db.KVDB = (*boltImpl)(nil)

// DBOptions configures the bolt database
type DBOptions struct {
	Path            string        // Database file (required)
	Timeout         time.Duration // How long to wait for the file lock (0 = 1s)
	NoSync          bool          // Skip fsync after each commit
	InitialMmapSize int           // Initial mmap size in bytes (0 = 64 MB)
}

const defaultInitialMmapSize = 64 << 20

// boltImpl is a persistent db.KVDB backed by a single bbolt bucket.
// bbolt allows one read-write transaction at a time, so Apply needs no
// locking of its own.
type boltImpl struct {
	db   *bolt.DB
	path string
}

// NewBoltDB opens (or creates) a bolt database file at opts.Path.
func NewBoltDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("bolt: a path is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	// bbolt remaps the file when it grows, which waits for all open read
	// transactions. A large initial mapping keeps open snapshots from
	// blocking writers.
	mmapSize := opts.InitialMmapSize
	if mmapSize <= 0 {
		mmapSize = defaultInitialMmapSize
	}

	bdb, err := bolt.Open(opts.Path, 0600, &bolt.Options{
		Timeout:         timeout,
		NoSync:          opts.NoSync,
		InitialMmapSize: mmapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening %s: %w", opts.Path, err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("bolt: creating bucket: %w", err)
	}

	log.Infof("opened bolt database at %s", opts.Path)
	return &boltImpl{db: bdb, path: opts.Path}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Apply(txn db.Txn) (bool, error) {
	applied := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)

		if txn.Compare != nil {
			current, found := lookup(bk, []byte(txn.Compare.Key))
			if !txn.Compare.Matches(string(current), found) {
				return nil
			}
		}

		for _, prefix := range txn.DeletePrefixes {
			if err := deletePrefix(bk, []byte(prefix)); err != nil {
				return err
			}
		}
		for _, key := range txn.Deletes {
			if err := bk.Delete([]byte(key)); err != nil {
				return err
			}
		}
		for key, value := range txn.Puts {
			if err := bk.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("bolt: apply failed: %w", err)
	}
	return applied, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v, ok := lookup(tx.Bucket(bucket), []byte(key))
		// string conversion copies, v is only valid during the transaction
		value, found = string(v), ok
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt: get failed: %w", err)
	}
	return value, found, nil
}

func (b *boltImpl) GetPrefix(prefix string) (map[string]string, error) {
	result := make(map[string]string)
	err := b.db.View(func(tx *bolt.Tx) error {
		return scan(tx.Bucket(bucket), []byte(prefix), func(k, v []byte) error {
			result[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get prefix failed: %w", err)
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes the snapshot from inside a read transaction, which gives a
// consistent view without blocking writers.
func (b *boltImpl) Save(w io.Writer) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return writeBucket(tx, w)
	})
}

// Snapshot keeps a read transaction open until the snapshot is closed.
// Close of the database waits for all open snapshots.
func (b *boltImpl) Snapshot() (db.Snapshot, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("bolt: snapshot failed: %w", err)
	}
	return &boltSnapshot{tx: tx}, nil
}

// Load recreates the bucket from the snapshot in one read-write transaction.
func (b *boltImpl) Load(r io.Reader) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		bk, err := tx.CreateBucket(bucket)
		if err != nil {
			return err
		}
		return util.ReadSnapshot(r, func(key, value string) error {
			return bk.Put([]byte(key), []byte(value))
		})
	})
}

type boltSnapshot struct {
	tx *bolt.Tx
}

func (s *boltSnapshot) Save(w io.Writer) error {
	if s.tx == nil {
		return fmt.Errorf("bolt: snapshot is closed")
	}
	return writeBucket(s.tx, w)
}

func (s *boltSnapshot) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

func (b *boltImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplBolt,
		SupportedFeatures: db.FeatureList(db.AllFeatures),
	}
	_ = b.db.View(func(tx *bolt.Tx) error {
		info.Keys = tx.Bucket(bucket).Stats().KeyN
		info.SizeBytes = int(tx.Size())
		return nil
	})
	info.Metadata = &struct {
		Path string `json:"path"`
	}{
		Path: b.path,
	}
	return info
}

func (b *boltImpl) SupportsFeature(feature db.Feature) bool {
	return db.AllFeatures&feature == feature
}

func (b *boltImpl) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("bolt: close failed: %w", err)
	}
	log.Infof("closed bolt database at %s", b.path)
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// lookup uses a cursor so a stored empty value is told apart from a missing key.
func lookup(bk *bolt.Bucket, key []byte) ([]byte, bool) {
	k, v := bk.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false
	}
	return v, true
}

func scan(bk *bolt.Bucket, prefix []byte, fn func(k, v []byte) error) error {
	c := bk.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// writeBucket writes every entry of the bucket as a snapshot.
func writeBucket(tx *bolt.Tx, w io.Writer) error {
	bk := tx.Bucket(bucket)

	sw, err := util.NewSnapshotWriter(w, uint64(bk.Stats().KeyN))
	if err != nil {
		return err
	}
	if err := bk.ForEach(func(k, v []byte) error {
		return sw.Write(string(k), string(v))
	}); err != nil {
		return err
	}
	return sw.Close()
}

// deletePrefix collects the keys first, deleting while a cursor walks the
// bucket skips entries.
func deletePrefix(bk *bolt.Bucket, prefix []byte) error {
	var doomed [][]byte
	if err := scan(bk, prefix, func(k, _ []byte) error {
		doomed = append(doomed, bytes.Clone(k))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range doomed {
		if err := bk.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
