package memory

import (
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
	dbtesting "github.com/ValentinKolb/dss/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MemoryDB", func() db.KVDB {
		return NewMemoryDB(nil)
	})
}

func TestSmallDegree(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MemoryDB(degree=2)", func() db.KVDB {
		return NewMemoryDB(&DBOptions{Degree: 2})
	})
}

func TestSizeAccounting(t *testing.T) {
	database := NewMemoryDB(nil)
	defer database.Close()

	database.Apply(db.Txn{Puts: map[string]string{"ab": "cd"}})
	if got := database.GetInfo().SizeBytes; got != 4+entryOverhead {
		t.Errorf("Expected size %d, got %d", 4+entryOverhead, got)
	}

	// overwrite replaces the old size
	database.Apply(db.Txn{Puts: map[string]string{"ab": "c"}})
	if got := database.GetInfo().SizeBytes; got != 3+entryOverhead {
		t.Errorf("Expected size %d, got %d", 3+entryOverhead, got)
	}

	database.Apply(db.Txn{DeletePrefixes: []string{"a"}})
	if got := database.GetInfo().SizeBytes; got != 0 {
		t.Errorf("Expected size 0 after delete, got %d", got)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "MemoryDB", func() db.KVDB {
		return NewMemoryDB(nil)
	})
}
