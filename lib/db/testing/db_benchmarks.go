package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory())
		})

		b.Run("PutBatch", func(b *testing.B) {
			benchmarkPutBatch(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("GetPrefix", func(b *testing.B) {
			benchmarkGetPrefix(b, factory())
		})

		b.Run("Swap", func(b *testing.B) {
			benchmarkSwap(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, database db.KVDB, n int) {
	puts := make(map[string]string, n)
	for i := 0; i < n; i++ {
		puts[fmt.Sprintf("test-key-%d", i)] = fmt.Sprintf("test-value-%d", i)
	}
	if _, err := database.Apply(db.Txn{Puts: puts}); err != nil {
		b.Fatalf("fill failed: %v", err)
	}
}

// Benchmark for single key puts
func benchmarkPut(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			database.Apply(db.Txn{Puts: map[string]string{
				fmt.Sprintf("test-key-%d", i): fmt.Sprintf("test-value-%d", i),
			}})
		}
	})
}

// Benchmark for batch puts of 100 keys
func benchmarkPutBatch(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		puts := make(map[string]string, 100)
		for j := 0; j < 100; j++ {
			puts[fmt.Sprintf("batch-%d.key-%d", i, j)] = "value"
		}
		database.Apply(db.Txn{Puts: puts})
	}
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	const numKeys = 10_000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

// Prefix reads returning 100 of 10,000 keys
func benchmarkGetPrefix(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGetPrefix)

	puts := make(map[string]string, 10_000)
	for ns := 0; ns < 100; ns++ {
		for k := 0; k < 100; k++ {
			puts[fmt.Sprintf("ns-%03d.key-%03d", ns, k)] = "value"
		}
	}
	database.Apply(db.Txn{Puts: puts})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.GetPrefix(fmt.Sprintf("ns-%03d.", counter%100))
			counter++
		}
	})
}

// Guarded puts on a single contended key
func benchmarkSwap(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureSwap)

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			database.Apply(db.Txn{
				Compare: &db.Compare{Key: "contended"},
				Puts:    map[string]string{"contended": fmt.Sprintf("%d", i)},
			})
			database.Apply(db.Txn{Deletes: []string{"contended"}})
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	target := factory()
	b.Cleanup(func() {
		database.Close()
		target.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureSave|db.FeatureLoad)

	fill(b, database, 10_000)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		b.Fatalf("Save failed: %v", err)
	}
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out bytes.Buffer
		if err := database.Save(&out); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
		if err := target.Load(bytes.NewReader(data)); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}

// 70% reads, 20% puts, 10% deletes on random keys
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	const numKeys = 10_000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", r.Intn(numKeys))
			switch op := r.Intn(10); {
			case op < 7:
				database.Get(key)
			case op < 9:
				database.Apply(db.Txn{Puts: map[string]string{key: "updated"}})
			default:
				database.Apply(db.Txn{Deletes: []string{key}})
			}
		}
	})
}
