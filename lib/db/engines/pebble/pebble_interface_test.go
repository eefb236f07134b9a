package pebble

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
	dbtesting "github.com/ValentinKolb/dss/lib/db/testing"
)

func factory(tb testing.TB) dbtesting.DBFactory {
	return func() db.KVDB {
		kv, err := NewPebbleDB(&DBOptions{Path: tb.TempDir()})
		if err != nil {
			tb.Fatalf("failed to open pebble: %v", err)
		}
		return kv
	}
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "PebbleDB", factory(t))
}

func TestMissingPath(t *testing.T) {
	if _, err := NewPebbleDB(&DBOptions{}); err == nil {
		t.Fatal("expected an error without a path")
	}
	if _, err := NewPebbleDB(nil); err == nil {
		t.Fatal("expected an error without options")
	}
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	kv, err := NewPebbleDB(&DBOptions{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Apply(db.Txn{Puts: map[string]string{"persist": "me"}}); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}

	kv, err = NewPebbleDB(&DBOptions{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	v, found, err := kv.Get("persist")
	if err != nil || !found || v != "me" {
		t.Fatalf("expected persisted value, got %q found=%v err=%v", v, found, err)
	}
}

func TestUseAfterClose(t *testing.T) {
	kv := factory(t)()
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := kv.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Get, got %v", err)
	}
	if _, err := kv.Apply(db.Txn{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Apply, got %v", err)
	}
	if err := kv.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from second Close, got %v", err)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "PebbleDB", factory(b))
}

func TestInfoReleasesSnapshots(t *testing.T) {
	kv := factory(t)()
	defer kv.Close()

	if _, err := kv.Apply(db.Txn{Puts: map[string]string{"a": "1", "b": "2"}}); err != nil {
		t.Fatal(err)
	}
	snap, err := kv.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	if info := kv.GetInfo(); info.Keys != 2 {
		t.Errorf("expected 2 keys, got %d", info.Keys)
	}

	pdb := kv.(*pebbleImpl).db
	if n := pdb.Metrics().Snapshots.Count; n != 1 {
		t.Errorf("expected only the test snapshot to be open, got %d", n)
	}
	if err := snap.Close(); err != nil {
		t.Fatal(err)
	}
	if n := pdb.Metrics().Snapshots.Count; n != 0 {
		t.Errorf("expected no open snapshots, got %d", n)
	}
}
