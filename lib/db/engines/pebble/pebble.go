package pebble

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/util"
	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log = logger.GetLogger("db/pebble")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("pebble: database is closed")
)

// Compile-time interface check.
var _ db.KVDB = (*pebbleImpl)(nil)

// DBOptions configures the pebble database
type DBOptions struct {
	Path       string // Directory of the database (required)
	CacheSize  int64  // Block cache size in bytes (0 = 8 MB)
	SyncWrites bool   // fsync the WAL on every commit
}

// pebbleImpl is a persistent db.KVDB backed by Pebble.
//
// Pebble has no transactions, so Apply serialises writers with writeMu: the
// compare guard is evaluated and the batch is committed while no other writer
// can interleave. The batch commit itself is atomic, so readers never observe
// a partially applied transaction.
type pebbleImpl struct {
	db        *pebble.DB
	path      string
	writeOpts *pebble.WriteOptions

	writeMu sync.Mutex

	// closed + mu guard against use-after-close. Operations take an RLock,
	// Close takes the write lock, draining in-flight operations before teardown.
	closed atomic.Bool
	mu     sync.RWMutex
}

// NewPebbleDB opens (or creates) a pebble database at opts.Path.
func NewPebbleDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("pebble: a path is required")
	}

	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = 8 << 20
	}
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	pdb, err := pebble.Open(opts.Path, &pebble.Options{Cache: cache})
	if err != nil {
		return nil, fmt.Errorf("pebble: failed to open %s: %w", opts.Path, err)
	}

	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}

	log.Infof("opened pebble database at %s", opts.Path)

	return &pebbleImpl{
		db:        pdb,
		path:      opts.Path,
		writeOpts: writeOpts,
	}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Apply(txn db.Txn) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return false, ErrClosed
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if txn.Compare != nil {
		current, found, err := p.get(p.db, txn.Compare.Key)
		if err != nil {
			return false, err
		}
		if !txn.Compare.Matches(current, found) {
			return false, nil
		}
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, prefix := range txn.DeletePrefixes {
		if err := p.stageDeletePrefix(batch, prefix); err != nil {
			return false, err
		}
	}
	for _, key := range txn.Deletes {
		if err := batch.Delete([]byte(key), nil); err != nil {
			return false, fmt.Errorf("pebble: batch delete failed: %w", err)
		}
	}
	for key, value := range txn.Puts {
		if err := batch.Set([]byte(key), []byte(value), nil); err != nil {
			return false, fmt.Errorf("pebble: batch put failed: %w", err)
		}
	}

	if err := batch.Commit(p.writeOpts); err != nil {
		return false, fmt.Errorf("pebble: batch commit failed: %w", err)
	}
	return true, nil
}

// stageDeletePrefix adds a range deletion for prefix to the batch. The empty
// prefix (or a prefix without an upper bound) has no exclusive end key, so its
// keys are enumerated instead.
func (p *pebbleImpl) stageDeletePrefix(batch *pebble.Batch, prefix string) error {
	start := []byte(prefix)
	if end := util.PrefixUpperBound(start); end != nil {
		if err := batch.DeleteRange(start, end, nil); err != nil {
			return fmt.Errorf("pebble: batch range delete failed: %w", err)
		}
		return nil
	}

	return p.scan(p.db, prefix, func(key, _ []byte) error {
		if err := batch.Delete(key, nil); err != nil {
			return fmt.Errorf("pebble: batch delete failed: %w", err)
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Get(key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return "", false, ErrClosed
	}
	return p.get(p.db, key)
}

func (p *pebbleImpl) GetPrefix(prefix string) (map[string]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return nil, ErrClosed
	}

	result := make(map[string]string)
	err := p.scan(p.db, prefix, func(key, value []byte) error {
		// string conversion copies, the slices are only valid until Next()
		result[string(key)] = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a point-in-time snapshot. Writers are not blocked.
func (p *pebbleImpl) Save(w io.Writer) error {
	snap, err := p.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()
	return snap.Save(w)
}

// Snapshot pins the current sequence number of pebble. Later writes are not
// visible to it.
func (p *pebbleImpl) Snapshot() (db.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return nil, ErrClosed
	}
	return &pebbleSnapshot{p: p, snap: p.db.NewSnapshot()}, nil
}

// Load replaces the whole database with the snapshot in one batch.
func (p *pebbleImpl) Load(r io.Reader) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrClosed
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	batch := p.db.NewBatch()
	defer batch.Close()

	if err := p.stageDeletePrefix(batch, ""); err != nil {
		return err
	}
	if err := util.ReadSnapshot(r, func(key, value string) error {
		return batch.Set([]byte(key), []byte(value), nil)
	}); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble: load commit failed: %w", err)
	}
	return nil
}

// pebbleSnapshot wraps a pebble.Snapshot. Closing it after the database was
// closed is a no-op.
type pebbleSnapshot struct {
	p    *pebbleImpl
	snap *pebble.Snapshot
}

func (s *pebbleSnapshot) Save(w io.Writer) error {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	if s.p.closed.Load() || s.snap == nil {
		return ErrClosed
	}

	// first pass: count, second pass: write
	var count uint64
	if err := s.p.scan(s.snap, "", func(_, _ []byte) error {
		count++
		return nil
	}); err != nil {
		return err
	}

	sw, err := util.NewSnapshotWriter(w, count)
	if err != nil {
		return err
	}
	if err := s.p.scan(s.snap, "", func(key, value []byte) error {
		return sw.Write(string(key), string(value))
	}); err != nil {
		return err
	}
	return sw.Close()
}

func (s *pebbleSnapshot) Close() error {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	if s.snap == nil || s.p.closed.Load() {
		return nil
	}
	err := s.snap.Close()
	s.snap = nil
	return err
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo reports the disk usage from the pebble metrics. Pebble keeps no key
// count, so Keys is counted by iterating a snapshot, which costs O(n).
// Writers are not blocked while counting.
func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplPebble,
		SupportedFeatures: db.FeatureList(db.AllFeatures),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return info
	}

	snap := p.db.NewSnapshot()
	_ = p.scan(snap, "", func(_, _ []byte) error {
		info.Keys++
		return nil
	})
	_ = snap.Close()

	m := p.db.Metrics()
	info.SizeBytes = int(m.DiskSpaceUsage())
	info.Metadata = &struct {
		Path       string `json:"path"`
		Compaction int64  `json:"compactions"`
		Flushes    int64  `json:"flushes"`
		Info       string `json:"info"`
	}{
		Path:       p.path,
		Info:       "Keys is counted with a full scan.",
		Compaction: m.Compact.Count,
		Flushes:    m.Flush.Count,
	}
	return info
}

func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	return db.AllFeatures&feature == feature
}

// Close performs a graceful shutdown. It acquires an exclusive lock so
// all in-flight operations complete before teardown.
func (p *pebbleImpl) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	p.closed.Store(true)

	if err := p.db.Flush(); err != nil {
		log.Errorf("flush failed during shutdown of %s: %v", p.path, err)
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("pebble: close failed: %w", err)
	}

	log.Infof("closed pebble database at %s", p.path)
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// reader is the part of pebble.DB and pebble.Snapshot used by the helpers.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) *pebble.Iterator
}

func (p *pebbleImpl) get(r reader, key string) (string, bool, error) {
	val, closer, err := r.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("pebble: get failed: %w", err)
	}
	defer closer.Close()

	// Copy - the returned slice is only valid until closer.Close().
	return string(val), true, nil
}

// scan calls fn for every key starting with prefix in ascending order.
func (p *pebbleImpl) scan(r reader, prefix string, fn func(key, value []byte) error) error {
	lower := []byte(prefix)
	iter := r.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: util.PrefixUpperBound(lower),
	})

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			_ = iter.Close()
			return err
		}
	}

	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return fmt.Errorf("pebble: iteration failed: %w", err)
	}
	return iter.Close()
}
