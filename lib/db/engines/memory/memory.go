package memory

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultDegree = 32 // B-tree degree
	entryOverhead = 48 // estimated per entry bookkeeping in bytes
)

// --------------------------------------------------------------------------
// Core memory database structure
// --------------------------------------------------------------------------

// entry is a single key-value pair stored in the tree, ordered by key
type entry struct {
	key   string
	value string
}

func lessEntry(a, b entry) bool {
	return a.key < b.key
}

// memoryImpl keeps all entries in an ordered B-tree guarded by a RWMutex.
// Readers share the lock, every transaction takes it exclusively, which makes
// Apply trivially atomic.
type memoryImpl struct {
	mu        sync.RWMutex
	degree    int
	tree      *btree.BTreeG[entry]
	sizeBytes int
}

// DBOptions configures the memory database
type DBOptions struct {
	Degree int // B-tree degree (0 = default)
}

// DefaultOptions returns the default memory database options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// NewMemoryDB creates a new in-memory database with the specified options (optional)
func NewMemoryDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	degree := opts.Degree
	if degree < 2 {
		degree = defaultDegree
	}

	return &memoryImpl{
		degree: degree,
		tree:   btree.NewG[entry](degree, lessEntry),
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Apply atomically applies the transaction.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memoryImpl) Apply(txn db.Txn) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// check the guard before touching anything
	if txn.Compare != nil {
		current, found := m.tree.Get(entry{key: txn.Compare.Key})
		if !txn.Compare.Matches(current.value, found) {
			return false, nil
		}
	}

	for _, prefix := range txn.DeletePrefixes {
		m.deletePrefix(prefix)
	}

	for _, key := range txn.Deletes {
		if old, ok := m.tree.Delete(entry{key: key}); ok {
			m.sizeBytes -= len(old.key) + len(old.value)
		}
	}

	for key, value := range txn.Puts {
		old, replaced := m.tree.ReplaceOrInsert(entry{key: key, value: value})
		if replaced {
			m.sizeBytes -= len(old.key) + len(old.value)
		}
		m.sizeBytes += len(key) + len(value)
	}

	return true, nil
}

// deletePrefix removes every entry whose key starts with prefix.
// The caller must hold the write lock.
func (m *memoryImpl) deletePrefix(prefix string) {
	var doomed []entry
	m.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !strings.HasPrefix(e.key, prefix) {
			return false
		}
		doomed = append(doomed, e)
		return true
	})
	for _, e := range doomed {
		m.tree.Delete(e)
		m.sizeBytes -= len(e.key) + len(e.value)
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the value for a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memoryImpl) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tree.Get(entry{key: key})
	return e.value, ok, nil
}

// GetPrefix returns all entries below prefix.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memoryImpl) GetPrefix(prefix string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string)
	m.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !strings.HasPrefix(e.key, prefix) {
			return false
		}
		result[e.key] = e.value
		return true
	})
	return result, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of the database.
func (m *memoryImpl) Save(w io.Writer) error {
	snap, err := m.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()
	return snap.Save(w)
}

// Snapshot clones the tree. The clone shares its nodes with the live tree
// until either side is written (copy-on-write), so this is cheap.
func (m *memoryImpl) Snapshot() (db.Snapshot, error) {
	// Clone marks the nodes of both trees, it needs the write lock
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memorySnapshot{tree: m.tree.Clone()}, nil
}

// Load replaces the database contents with the snapshot.
// The contents are only swapped after the whole snapshot was read.
func (m *memoryImpl) Load(r io.Reader) error {
	tree := btree.NewG[entry](m.degree, lessEntry)
	size := 0

	err := util.ReadSnapshot(r, func(key, value string) error {
		tree.ReplaceOrInsert(entry{key: key, value: value})
		size += len(key) + len(value)
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree = tree
	m.sizeBytes = size
	return nil
}

// memorySnapshot is a frozen clone of the tree. It is never written.
type memorySnapshot struct {
	tree *btree.BTreeG[entry]
}

func (s *memorySnapshot) Save(w io.Writer) error {
	if s.tree == nil {
		return fmt.Errorf("memory: snapshot is closed")
	}

	sw, err := util.NewSnapshotWriter(w, uint64(s.tree.Len()))
	if err != nil {
		return err
	}

	var writeErr error
	s.tree.Ascend(func(e entry) bool {
		writeErr = sw.Write(e.key, e.value)
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}
	return sw.Close()
}

func (s *memorySnapshot) Close() error {
	s.tree = nil
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (m *memoryImpl) GetInfo() db.DatabaseInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.tree.Len()
	return db.DatabaseInfo{
		Keys:              keys,
		SizeBytes:         m.sizeBytes + keys*entryOverhead,
		DbType:            db.ImplMemory,
		SupportedFeatures: db.FeatureList(db.AllFeatures),
		Metadata: &struct {
			Info string `json:"info"`
		}{
			Info: "SizeBytes is an estimate including per entry overhead.",
		},
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (m *memoryImpl) SupportsFeature(feature db.Feature) bool {
	return db.AllFeatures&feature == feature
}

// Close releases the tree
func (m *memoryImpl) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Clear(false)
	m.sizeBytes = 0
	return nil
}
