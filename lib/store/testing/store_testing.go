package testing

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dss/lib/store"
)

// StoreFactory creates a new, empty store.
type StoreFactory func() store.IStore

// RunIStoreTests runs the behavioural test suite every store.IStore
// implementation has to pass.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("PutBatch", func(t *testing.T) {
			testPutBatch(t, factory())
		})

		t.Run("PutSwap", func(t *testing.T) {
			testPutSwap(t, factory())
		})

		t.Run("PutSwapWithOthers", func(t *testing.T) {
			testPutSwapWithOthers(t, factory())
		})

		t.Run("GetPrefix", func(t *testing.T) {
			testGetPrefix(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("DeleteBatch", func(t *testing.T) {
			testDeleteBatch(t, factory())
		})

		t.Run("DeletePrefix", func(t *testing.T) {
			testDeletePrefix(t, factory())
		})

		t.Run("InvalidArguments", func(t *testing.T) {
			testInvalidArguments(t, factory())
		})

		t.Run("ConcurrentPutSwap", func(t *testing.T) {
			testConcurrentPutSwap(t, factory())
		})

		t.Run("DBInfo", func(t *testing.T) {
			testDBInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func strPtr(s string) *string {
	return &s
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func expectValue(t testing.TB, s store.IStore, key, want string) {
	t.Helper()
	got, found, err := s.Get(key)
	must(t, err)
	if !found {
		t.Errorf("Expected key %q to exist", key)
		return
	}
	if got != want {
		t.Errorf("Expected value %q for key %q, got %q", want, key, got)
	}
}

func expectAbsent(t testing.TB, s store.IStore, key string) {
	t.Helper()
	_, found, err := s.Get(key)
	must(t, err)
	if found {
		t.Errorf("Expected key %q to be absent", key)
	}
}

func expectInvalid(t testing.TB, op string, err error) {
	t.Helper()
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("%s: expected InvalidArgument, got %v", op, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s store.IStore) {
	must(t, s.Put("k", "v1"))
	expectValue(t, s, "k", "v1")

	must(t, s.Put("k", "v2"))
	expectValue(t, s, "k", "v2")

	must(t, s.Put("empty", ""))
	expectValue(t, s, "empty", "")

	expectAbsent(t, s, "missing")
}

func testPutBatch(t *testing.T, s store.IStore) {
	input := map[string]string{"a": "1", "b": "2", "c": ""}
	must(t, s.PutBatch(input))

	for k, v := range input {
		expectValue(t, s, k, v)
	}
	if len(input) != 3 || input["a"] != "1" {
		t.Errorf("PutBatch must not modify its input, got %v", input)
	}

	// an empty batch is a no-op
	must(t, s.PutBatch(map[string]string{}))
}

func testPutSwap(t *testing.T, s store.IStore) {
	// absent guard on a missing key
	ok, err := s.PutSwap("lock", nil, "owner-1")
	must(t, err)
	if !ok {
		t.Fatalf("Expected swap on a missing key to apply")
	}
	expectValue(t, s, "lock", "owner-1")

	// absent guard on a present key
	ok, err = s.PutSwap("lock", nil, "owner-2")
	must(t, err)
	if ok {
		t.Errorf("Expected swap with absent guard on a present key to fail")
	}
	expectValue(t, s, "lock", "owner-1")

	// mismatching guard
	ok, err = s.PutSwap("lock", strPtr("owner-2"), "owner-3")
	must(t, err)
	if ok {
		t.Errorf("Expected swap with a mismatching guard to fail")
	}
	expectValue(t, s, "lock", "owner-1")

	// matching guard
	ok, err = s.PutSwap("lock", strPtr("owner-1"), "owner-3")
	must(t, err)
	if !ok {
		t.Errorf("Expected swap with a matching guard to apply")
	}
	expectValue(t, s, "lock", "owner-3")

	// value guard on a missing key
	ok, err = s.PutSwap("missing", strPtr(""), "x")
	must(t, err)
	if ok {
		t.Errorf("Expected swap with a value guard on a missing key to fail")
	}
	expectAbsent(t, s, "missing")
}

func testPutSwapWithOthers(t *testing.T, s store.IStore) {
	must(t, s.Put("leader", "node-1"))

	others := map[string]string{"epoch": "7", "members": "a,b,c"}

	ok, err := s.PutSwapWithOthers("leader", strPtr("node-2"), "node-3", others)
	must(t, err)
	if ok {
		t.Fatalf("Expected swap with a mismatching guard to fail")
	}
	expectValue(t, s, "leader", "node-1")
	expectAbsent(t, s, "epoch")
	expectAbsent(t, s, "members")

	ok, err = s.PutSwapWithOthers("leader", strPtr("node-1"), "node-3", others)
	must(t, err)
	if !ok {
		t.Fatalf("Expected swap with a matching guard to apply")
	}
	expectValue(t, s, "leader", "node-3")
	expectValue(t, s, "epoch", "7")
	expectValue(t, s, "members", "a,b,c")

	if len(others) != 2 {
		t.Errorf("PutSwapWithOthers must not modify others, got %v", others)
	}

	// empty others behaves like PutSwap
	ok, err = s.PutSwapWithOthers("leader", strPtr("node-3"), "node-4", map[string]string{})
	must(t, err)
	if !ok {
		t.Errorf("Expected swap with empty others to apply")
	}
	expectValue(t, s, "leader", "node-4")
}

func testGetPrefix(t *testing.T, s store.IStore) {
	must(t, s.PutBatch(map[string]string{
		"run.1.status": "ok",
		"run.2.status": "failed",
		"run.2.host":   "h2",
		"runner":       "r",
		"other":        "o",
	}))

	got, err := s.GetPrefix("run.")
	must(t, err)
	want := map[string]string{"run.1.status": "ok", "run.2.status": "failed", "run.2.host": "h2"}
	if len(got) != len(want) {
		t.Errorf("Expected %d entries, got %d: %v", len(want), len(got), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %q=%q, got %q", k, v, got[k])
		}
	}

	none, err := s.GetPrefix("nothing.")
	must(t, err)
	if len(none) != 0 {
		t.Errorf("Expected no entries, got %v", none)
	}

	all, err := s.GetPrefix("")
	must(t, err)
	if len(all) != 5 {
		t.Errorf("Expected 5 entries for the empty prefix, got %d", len(all))
	}
}

func testDelete(t *testing.T, s store.IStore) {
	must(t, s.Put("a", "1"))
	must(t, s.Put("b", "2"))

	must(t, s.Delete("a"))
	expectAbsent(t, s, "a")
	expectValue(t, s, "b", "2")

	// deleting a missing key is not an error
	must(t, s.Delete("a"))
}

func testDeleteBatch(t *testing.T, s store.IStore) {
	must(t, s.PutBatch(map[string]string{"a": "1", "b": "2", "c": "3"}))

	keys := []string{"a", "b"}
	must(t, s.DeleteBatch(keys))

	expectAbsent(t, s, "a")
	expectAbsent(t, s, "b")
	expectValue(t, s, "c", "3")

	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("DeleteBatch must not modify its input, got %v", keys)
	}

	must(t, s.DeleteBatch([]string{}))
}

func testDeletePrefix(t *testing.T, s store.IStore) {
	puts := make(map[string]string)
	for i := 0; i < 20; i++ {
		puts[fmt.Sprintf("tmp.%02d", i)] = "x"
	}
	puts["tmp"] = "parent"
	puts["keep"] = "y"
	must(t, s.PutBatch(puts))

	must(t, s.DeletePrefix("tmp."))

	left, err := s.GetPrefix("tmp")
	must(t, err)
	if len(left) != 1 || left["tmp"] != "parent" {
		t.Errorf("Expected only the parent key to survive, got %v", left)
	}
	expectValue(t, s, "keep", "y")
}

func testInvalidArguments(t *testing.T, s store.IStore) {
	expectInvalid(t, "Put", s.Put("", "v"))

	_, _, err := s.Get("")
	expectInvalid(t, "Get", err)

	expectInvalid(t, "Delete", s.Delete(""))

	expectInvalid(t, "PutBatch", s.PutBatch(map[string]string{"ok": "1", "": "2"}))
	expectAbsent(t, s, "ok")

	expectInvalid(t, "DeleteBatch", s.DeleteBatch([]string{"ok", ""}))

	_, err = s.PutSwap("", nil, "v")
	expectInvalid(t, "PutSwap", err)

	_, err = s.PutSwapWithOthers("k", nil, "v", map[string]string{"": "x"})
	expectInvalid(t, "PutSwapWithOthers", err)
	expectAbsent(t, s, "k")
}

func testConcurrentPutSwap(t *testing.T, s store.IStore) {
	const workers = 8

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			ok, err := s.PutSwap("election", nil, fmt.Sprintf("node-%d", id))
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Expected exactly one winner, got %d", winners.Load())
	}
}

func testDBInfo(t *testing.T, s store.IStore) {
	must(t, s.Put("k", "v"))
	if _, err := s.GetDBInfo(); err != nil {
		t.Errorf("Unexpected error from GetDBInfo: %v", err)
	}
}
