package bolt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
	dbtesting "github.com/ValentinKolb/dss/lib/db/testing"
)

func factory(tb testing.TB) dbtesting.DBFactory {
	return func() db.KVDB {
		kv, err := NewBoltDB(&DBOptions{Path: filepath.Join(tb.TempDir(), "test.db"), NoSync: true})
		if err != nil {
			tb.Fatalf("failed to open bolt: %v", err)
		}
		return kv
	}
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "BoltDB", factory(t))
}

func TestOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := NewBoltDB(&DBOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}
	// File should exist
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file should exist: %v", err)
	}
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := NewBoltDB(&DBOptions{Path: "/nonexistent/dir/test.db"})
	if err == nil {
		t.Fatal("opening db in nonexistent dir should fail")
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	kv, err := NewBoltDB(&DBOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Apply(db.Txn{Puts: map[string]string{"persist": "me", "empty": ""}}); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	kv, err = NewBoltDB(&DBOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	if v, found, _ := kv.Get("persist"); !found || v != "me" {
		t.Fatalf("expected persisted value, got %q found=%v", v, found)
	}
	if _, found, _ := kv.Get("empty"); !found {
		t.Fatal("expected persisted empty value")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "BoltDB", factory(b))
}
