package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("EmptyValue", func(t *testing.T) {
			testEmptyValue(t, factory())
		})

		t.Run("GetPrefix", func(t *testing.T) {
			testGetPrefix(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("DeletePrefix", func(t *testing.T) {
			testDeletePrefix(t, factory())
		})

		t.Run("SwapAbsent", func(t *testing.T) {
			testSwapAbsent(t, factory())
		})

		t.Run("SwapPresent", func(t *testing.T) {
			testSwapPresent(t, factory())
		})

		t.Run("SwapWithOthers", func(t *testing.T) {
			testSwapWithOthers(t, factory())
		})

		t.Run("ApplyOrder", func(t *testing.T) {
			testApplyOrder(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("SnapshotIsPointInTime", func(t *testing.T) {
			testSnapshotIsPointInTime(t, factory)
		})

		t.Run("ConcurrentSwap", func(t *testing.T) {
			testConcurrentSwap(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func strPtr(s string) *string {
	return &s
}

func mustApply(t testing.TB, database db.KVDB, txn db.Txn) bool {
	t.Helper()
	applied, err := database.Apply(txn)
	if err != nil {
		t.Fatalf("Unexpected error during Apply: %v", err)
	}
	return applied
}

func put(t testing.TB, database db.KVDB, key, value string) {
	t.Helper()
	mustApply(t, database, db.Txn{Puts: map[string]string{key: value}})
}

func expectValue(t testing.TB, database db.KVDB, key, want string) {
	t.Helper()
	got, found, err := database.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%q): %v", key, err)
	}
	if !found {
		t.Errorf("Expected key %q to exist", key)
		return
	}
	if got != want {
		t.Errorf("Expected value %q for key %q, got %q", want, key, got)
	}
}

func expectAbsent(t testing.TB, database db.KVDB, key string) {
	t.Helper()
	_, found, err := database.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%q): %v", key, err)
	}
	if found {
		t.Errorf("Expected key %q to be absent", key)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	put(t, database, "test-key", "test-value1")
	expectValue(t, database, "test-key", "test-value1")

	put(t, database, "test-key", "test-value2")
	expectValue(t, database, "test-key", "test-value2")

	expectAbsent(t, database, "nonexistent-key")

	// batch put
	mustApply(t, database, db.Txn{Puts: map[string]string{
		"batch-1": "a",
		"batch-2": "b",
		"batch-3": "c",
	}})
	expectValue(t, database, "batch-1", "a")
	expectValue(t, database, "batch-2", "b")
	expectValue(t, database, "batch-3", "c")

	// an empty transaction is a no-op that still applies
	if !mustApply(t, database, db.Txn{}) {
		t.Errorf("Expected empty transaction to apply")
	}
}

func testEmptyValue(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSwap)

	put(t, database, "empty", "")
	expectValue(t, database, "empty", "")

	// an empty value is a value, not absence
	if mustApply(t, database, db.Txn{
		Compare: &db.Compare{Key: "empty"},
		Puts:    map[string]string{"empty": "x"},
	}) {
		t.Errorf("Absent guard must not hold for a key with an empty value")
	}
	if !mustApply(t, database, db.Txn{
		Compare: &db.Compare{Key: "empty", Value: strPtr("")},
		Puts:    map[string]string{"empty": "x"},
	}) {
		t.Errorf("Guard on the empty value must hold")
	}
	expectValue(t, database, "empty", "x")
}

func testGetPrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGetPrefix)

	mustApply(t, database, db.Txn{Puts: map[string]string{
		"app.a":   "1",
		"app.b":   "2",
		"app.c.d": "3",
		"apps":    "4",
		"ap":      "5",
		"other":   "6",
	}})

	got, err := database.GetPrefix("app.")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	want := map[string]string{"app.a": "1", "app.b": "2", "app.c.d": "3"}
	if len(got) != len(want) {
		t.Errorf("Expected %d entries, got %d: %v", len(want), len(got), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %q=%q, got %q", k, v, got[k])
		}
	}

	// the empty prefix covers everything
	all, err := database.GetPrefix("")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("Expected 6 entries for the empty prefix, got %d", len(all))
	}

	none, err := database.GetPrefix("zzz")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Expected an empty non-nil map, got %v", none)
	}

	// keys with 0xff bytes need an unbounded upper bound
	put(t, database, "\xff\xff", "high")
	put(t, database, "\xff\xff\x01", "higher")
	high, err := database.GetPrefix("\xff\xff")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	if len(high) != 2 {
		t.Errorf("Expected 2 entries below 0xffff, got %d", len(high))
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	put(t, database, "delete-me", "v")
	put(t, database, "keep-me", "v")

	mustApply(t, database, db.Txn{Deletes: []string{"delete-me"}})
	expectAbsent(t, database, "delete-me")
	expectValue(t, database, "keep-me", "v")

	// deleting a missing key is not an error
	if !mustApply(t, database, db.Txn{Deletes: []string{"never-existed"}}) {
		t.Errorf("Expected delete of a missing key to apply")
	}

	// batch delete with duplicates
	mustApply(t, database, db.Txn{Puts: map[string]string{"x": "1", "y": "2"}})
	mustApply(t, database, db.Txn{Deletes: []string{"x", "y", "x"}})
	expectAbsent(t, database, "x")
	expectAbsent(t, database, "y")
}

func testDeletePrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGetPrefix|db.FeatureDeletePrefix)

	for i := 0; i < 100; i++ {
		put(t, database, fmt.Sprintf("ns1.key-%03d", i), "v")
		put(t, database, fmt.Sprintf("ns2.key-%03d", i), "v")
	}
	put(t, database, "ns1", "parent")

	mustApply(t, database, db.Txn{DeletePrefixes: []string{"ns1."}})

	left, err := database.GetPrefix("ns1")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	if len(left) != 1 || left["ns1"] != "parent" {
		t.Errorf("Expected only the parent key to survive, got %v", left)
	}

	other, err := database.GetPrefix("ns2.")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	if len(other) != 100 {
		t.Errorf("Expected 100 keys in ns2, got %d", len(other))
	}

	// the empty prefix clears the database
	mustApply(t, database, db.Txn{DeletePrefixes: []string{""}})
	all, err := database.GetPrefix("")
	if err != nil {
		t.Fatalf("Unexpected error during GetPrefix: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected an empty database, got %d keys", len(all))
	}
}

func testSwapAbsent(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSwap)

	txn := db.Txn{
		Compare: &db.Compare{Key: "lock"},
		Puts:    map[string]string{"lock": "owner-1"},
	}
	if !mustApply(t, database, txn) {
		t.Fatalf("Expected swap on an absent key to apply")
	}
	expectValue(t, database, "lock", "owner-1")

	txn.Puts = map[string]string{"lock": "owner-2"}
	if mustApply(t, database, txn) {
		t.Errorf("Expected swap on a present key with an absent guard to fail")
	}
	expectValue(t, database, "lock", "owner-1")
}

func testSwapPresent(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSwap)

	put(t, database, "k", "v1")

	if mustApply(t, database, db.Txn{
		Compare: &db.Compare{Key: "k", Value: strPtr("wrong")},
		Puts:    map[string]string{"k": "v2"},
	}) {
		t.Errorf("Expected swap with a mismatching guard to fail")
	}
	expectValue(t, database, "k", "v1")

	if !mustApply(t, database, db.Txn{
		Compare: &db.Compare{Key: "k", Value: strPtr("v1")},
		Puts:    map[string]string{"k": "v2"},
	}) {
		t.Errorf("Expected swap with a matching guard to apply")
	}
	expectValue(t, database, "k", "v2")

	// a guard on a missing key with a value never holds
	if mustApply(t, database, db.Txn{
		Compare: &db.Compare{Key: "missing", Value: strPtr("v1")},
		Puts:    map[string]string{"missing": "v2"},
	}) {
		t.Errorf("Expected swap on a missing key with a value guard to fail")
	}
	expectAbsent(t, database, "missing")
}

func testSwapWithOthers(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSwap)

	put(t, database, "leader", "node-1")

	failed := db.Txn{
		Compare: &db.Compare{Key: "leader", Value: strPtr("node-2")},
		Puts:    map[string]string{"leader": "node-3", "epoch": "2", "members": "3"},
	}
	if mustApply(t, database, failed) {
		t.Fatalf("Expected swap with a mismatching guard to fail")
	}
	// none of the side writes may be visible
	expectValue(t, database, "leader", "node-1")
	expectAbsent(t, database, "epoch")
	expectAbsent(t, database, "members")

	applied := db.Txn{
		Compare: &db.Compare{Key: "leader", Value: strPtr("node-1")},
		Puts:    map[string]string{"leader": "node-3", "epoch": "2", "members": "3"},
	}
	if !mustApply(t, database, applied) {
		t.Fatalf("Expected swap with a matching guard to apply")
	}
	expectValue(t, database, "leader", "node-3")
	expectValue(t, database, "epoch", "2")
	expectValue(t, database, "members", "3")
}

func testApplyOrder(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete|db.FeatureDeletePrefix)

	mustApply(t, database, db.Txn{Puts: map[string]string{"p.a": "old", "p.b": "old", "q": "old"}})

	// prefix deletes and deletes run before puts
	mustApply(t, database, db.Txn{
		DeletePrefixes: []string{"p."},
		Deletes:        []string{"q"},
		Puts:           map[string]string{"p.a": "new", "q": "new"},
	})
	expectValue(t, database, "p.a", "new")
	expectAbsent(t, database, "p.b")
	expectValue(t, database, "q", "new")
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	entries := make(map[string]string, numEntries)
	for i := 0; i < numEntries; i++ {
		entries[fmt.Sprintf("save-load-test-key-%d", i)] = fmt.Sprintf("save-load-test-value-%d", i)
	}
	entries["save-load-empty"] = ""
	mustApply(t, database, db.Txn{Puts: entries})

	// the target has stale data that must be replaced
	put(t, database2, "stale-key", "stale")

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for key, want := range entries {
		expectValue(t, database2, key, want)
		expectValue(t, database, key, want)
	}
	expectAbsent(t, database2, "stale-key")

	// garbage is rejected
	if err := database2.Load(bytes.NewBufferString("definitely not a snapshot")); err == nil {
		t.Errorf("Expected Load of garbage to fail")
	}
}

func testSnapshotIsPointInTime(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureDelete|db.FeatureSave|db.FeatureLoad)

	mustApply(t, database, db.Txn{Puts: map[string]string{"snap.a": "1", "snap.b": "1"}})

	snap, err := database.Snapshot()
	if err != nil {
		t.Fatalf("Unexpected error during Snapshot: %v", err)
	}

	// writes after the snapshot must not show up in it
	mustApply(t, database, db.Txn{
		Puts:    map[string]string{"snap.a": "2", "snap.c": "2"},
		Deletes: []string{"snap.b"},
	})

	var buf bytes.Buffer
	if err := snap.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during snapshot Save: %v", err)
	}
	if err := snap.Close(); err != nil {
		t.Fatalf("Unexpected error during snapshot Close: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	expectValue(t, database2, "snap.a", "1")
	expectValue(t, database2, "snap.b", "1")
	expectAbsent(t, database2, "snap.c")

	// the live database has the later writes
	expectValue(t, database, "snap.a", "2")
	expectAbsent(t, database, "snap.b")
	expectValue(t, database, "snap.c", "2")
}

func testConcurrentSwap(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSwap)

	const workers = 16

	var (
		wg     sync.WaitGroup
		winner atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			applied, err := database.Apply(db.Txn{
				Compare: &db.Compare{Key: "race"},
				Puts: map[string]string{
					"race":                       fmt.Sprintf("worker-%d", id),
					fmt.Sprintf("side-%d", id): "won",
				},
			})
			if err != nil {
				t.Errorf("Unexpected error during Apply: %v", err)
				return
			}
			if applied {
				winner.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winner.Load() != 1 {
		t.Fatalf("Expected exactly one winner, got %d", winner.Load())
	}

	owner, found, err := database.Get("race")
	if err != nil || !found {
		t.Fatalf("Expected the race key to exist (err=%v)", err)
	}
	var id int
	if _, err := fmt.Sscanf(owner, "worker-%d", &id); err != nil {
		t.Fatalf("Unexpected owner value %q", owner)
	}
	for i := 0; i < workers; i++ {
		if i == id {
			expectValue(t, database, fmt.Sprintf("side-%d", i), "won")
		} else {
			expectAbsent(t, database, fmt.Sprintf("side-%d", i))
		}
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	mustApply(t, database, db.Txn{Puts: map[string]string{"a": "1", "b": "2", "c": "3"}})

	info := database.GetInfo()
	if info.Keys != 3 {
		t.Errorf("Expected 3 keys, got %d", info.Keys)
	}
	if info.DbType == "" {
		t.Errorf("Expected a database type")
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected at least one supported feature")
	}
}
