package dss

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/engines/memory"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/lib/store/lstore"
	storetesting "github.com/ValentinKolb/dss/lib/store/testing"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func newLocalStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return memory.NewMemoryDB(nil) })
}

func mustNew(t *testing.T, s store.IStore, namespace string) *NamespacedStore {
	t.Helper()
	n, err := New(s, namespace)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", namespace, err)
	}
	return n
}

func strPtr(s string) *string {
	return &s
}

// call is one recorded call to the wrapped store
type call struct {
	op        string
	key       string
	keyValues map[string]string
	keys      []string
}

// recordingStore records every call and delegates to inner (if set).
// err is returned instead of delegating, prefixResult replaces GetPrefix results.
type recordingStore struct {
	mu    sync.Mutex
	calls []call

	inner        store.IStore
	err          error
	prefixResult map[string]string
}

func (r *recordingStore) record(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingStore) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recordingStore) Put(key, value string) error {
	r.record(call{op: "Put", key: key})
	if r.err != nil || r.inner == nil {
		return r.err
	}
	return r.inner.Put(key, value)
}

func (r *recordingStore) PutBatch(keyValues map[string]string) error {
	r.record(call{op: "PutBatch", keyValues: keyValues})
	if r.err != nil || r.inner == nil {
		return r.err
	}
	return r.inner.PutBatch(keyValues)
}

func (r *recordingStore) PutSwap(key string, oldValue *string, newValue string) (bool, error) {
	r.record(call{op: "PutSwap", key: key})
	if r.err != nil || r.inner == nil {
		return false, r.err
	}
	return r.inner.PutSwap(key, oldValue, newValue)
}

func (r *recordingStore) PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (bool, error) {
	r.record(call{op: "PutSwapWithOthers", key: key, keyValues: others})
	if r.err != nil || r.inner == nil {
		return false, r.err
	}
	return r.inner.PutSwapWithOthers(key, oldValue, newValue, others)
}

func (r *recordingStore) Get(key string) (string, bool, error) {
	r.record(call{op: "Get", key: key})
	if r.err != nil || r.inner == nil {
		return "", false, r.err
	}
	return r.inner.Get(key)
}

func (r *recordingStore) GetPrefix(keyPrefix string) (map[string]string, error) {
	r.record(call{op: "GetPrefix", key: keyPrefix})
	if r.err != nil {
		return nil, r.err
	}
	if r.prefixResult != nil || r.inner == nil {
		return r.prefixResult, nil
	}
	return r.inner.GetPrefix(keyPrefix)
}

func (r *recordingStore) Delete(key string) error {
	r.record(call{op: "Delete", key: key})
	if r.err != nil || r.inner == nil {
		return r.err
	}
	return r.inner.Delete(key)
}

func (r *recordingStore) DeleteBatch(keys []string) error {
	r.record(call{op: "DeleteBatch", keys: keys})
	if r.err != nil || r.inner == nil {
		return r.err
	}
	return r.inner.DeleteBatch(keys)
}

func (r *recordingStore) DeletePrefix(keyPrefix string) error {
	r.record(call{op: "DeletePrefix", key: keyPrefix})
	if r.err != nil || r.inner == nil {
		return r.err
	}
	return r.inner.DeletePrefix(keyPrefix)
}

func (r *recordingStore) GetDBInfo() (db.DatabaseInfo, error) {
	r.record(call{op: "GetDBInfo"})
	if r.err != nil || r.inner == nil {
		return db.DatabaseInfo{}, r.err
	}
	return r.inner.GetDBInfo()
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestNamespacedStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "OverLocalStore", func() store.IStore {
		return mustNew(t, newLocalStore(), "suite")
	})

	storetesting.RunIStoreTests(t, "Nested", func() store.IStore {
		return mustNew(t, mustNew(t, newLocalStore(), "outer"), "inner")
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		store     store.IStore
		namespace string
		wantErr   bool
	}{
		{"valid", &recordingStore{}, "framework", false},
		{"nil store", nil, "framework", true},
		{"empty namespace", &recordingStore{}, "", true},
		{"namespace with separator", &recordingStore{}, "a.b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.store, tt.namespace)
			if tt.wantErr {
				if !errors.Is(err, store.ErrInvalidArgument) {
					t.Fatalf("expected InvalidArgument, got %v", err)
				}
				if n != nil {
					t.Errorf("expected no store on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.Namespace() != tt.namespace {
				t.Errorf("Namespace() = %q, want %q", n.Namespace(), tt.namespace)
			}
			if n.Prefix() != "dss."+tt.namespace+"." {
				t.Errorf("Prefix() = %q", n.Prefix())
			}
		})
	}

	// construction itself never touches the store
	rec := &recordingStore{}
	mustNew(t, rec, "framework")
	if len(rec.Calls()) != 0 {
		t.Errorf("expected no calls during construction, got %v", rec.Calls())
	}
}

func TestPrefixRoundTrip(t *testing.T) {
	keys := []string{
		"a",
		"run.U123.status",
		"dss.other.key", // looks like a physical key of another namespace
		"with space",
		"unicode-ä-✓",
		".",
		"trailing.",
	}

	rec := &recordingStore{inner: newLocalStore()}
	n := mustNew(t, rec, "framework")

	for _, k := range keys {
		if err := n.Put(k, "v-"+k); err != nil {
			t.Fatalf("Put(%q) failed: %v", k, err)
		}
	}

	for i, c := range rec.Calls() {
		want := "dss.framework." + keys[i]
		if c.op != "Put" || c.key != want {
			t.Errorf("call %d: got %s(%q), want Put(%q)", i, c.op, c.key, want)
		}
	}

	got, err := n.GetPrefix("")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(keys) {
		t.Errorf("expected %d keys, got %d: %v", len(keys), len(got), got)
	}
	for _, k := range keys {
		if got[k] != "v-"+k {
			t.Errorf("round trip of %q failed, got %q", k, got[k])
		}
	}
}

func TestIsolation(t *testing.T) {
	shared := newLocalStore()
	a := mustNew(t, shared, "alpha")
	b := mustNew(t, shared, "beta")
	// a namespace that is a string prefix of another
	al := mustNew(t, shared, "al")

	if err := a.PutBatch(map[string]string{"x": "a1", "y": "a2"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Put("x", "b1"); err != nil {
		t.Fatal(err)
	}

	if v, _, _ := a.Get("x"); v != "a1" {
		t.Errorf("alpha sees x=%q", v)
	}
	if v, _, _ := b.Get("x"); v != "b1" {
		t.Errorf("beta sees x=%q", v)
	}
	if _, found, _ := b.Get("y"); found {
		t.Error("beta sees alpha's y")
	}

	for name, ns := range map[string]*NamespacedStore{"beta": b, "al": al} {
		got, err := ns.GetPrefix("")
		if err != nil {
			t.Fatal(err)
		}
		for k := range got {
			if k == "y" {
				t.Errorf("%s sees alpha's keys: %v", name, got)
			}
		}
	}

	// deleting a whole namespace leaves the others alone
	if err := a.DeletePrefix(""); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := b.Get("x"); v != "b1" {
		t.Errorf("beta lost x after alpha was cleared, got %q", v)
	}
	if left, _ := a.GetPrefix(""); len(left) != 0 {
		t.Errorf("alpha not empty after DeletePrefix: %v", left)
	}
}

func TestGetPrefix(t *testing.T) {
	shared := newLocalStore()
	n := mustNew(t, shared, "runs")

	if err := n.PutBatch(map[string]string{"p.a": "1", "p.b": "2"}); err != nil {
		t.Fatal(err)
	}
	// an unrelated key in the same physical store
	if err := shared.Put("q", "3"); err != nil {
		t.Fatal(err)
	}

	got, err := n.GetPrefix("p.")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["p.a"] != "1" || got["p.b"] != "2" {
		t.Errorf("unexpected result %v", got)
	}

	sub, err := n.GetPrefix("p.a")
	if err != nil {
		t.Fatal(err)
	}
	if len(sub) != 1 || sub["p.a"] != "1" {
		t.Errorf("unexpected result %v", sub)
	}
}

func TestGetPrefixIntegrityViolation(t *testing.T) {
	rec := &recordingStore{prefixResult: map[string]string{
		"dss.mine.ok":    "1",
		"dss.theirs.bad": "2",
	}}
	n := mustNew(t, rec, "mine")

	before := integrityViolations("mine").Get()

	got, err := n.GetPrefix("")
	if !errors.Is(err, store.ErrIntegrityViolation) {
		t.Fatalf("expected IntegrityViolation, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no entries on violation, got %v", got)
	}
	if after := integrityViolations("mine").Get(); after != before+1 {
		t.Errorf("expected violation counter to increase by one, %d -> %d", before, after)
	}

	// a key equal to the bare prefix without separator is foreign too
	rec.prefixResult = map[string]string{"dss.mine": "x"}
	if _, err := n.GetPrefix(""); !errors.Is(err, store.ErrIntegrityViolation) {
		t.Errorf("expected IntegrityViolation, got %v", err)
	}

	// the key that equals the prefix maps to the empty logical key
	rec.prefixResult = map[string]string{"dss.mine.": "root"}
	got, err = n.GetPrefix("")
	if err != nil {
		t.Fatal(err)
	}
	if got[""] != "root" {
		t.Errorf("expected empty logical key, got %v", got)
	}
}

func TestInvalidArgumentsDoNotReachStore(t *testing.T) {
	rec := &recordingStore{inner: newLocalStore()}
	n := mustNew(t, rec, "ns")

	checks := []struct {
		name string
		run  func() error
	}{
		{"Put empty key", func() error { return n.Put("", "v") }},
		{"Get empty key", func() error { _, _, err := n.Get(""); return err }},
		{"Delete empty key", func() error { return n.Delete("") }},
		{"PutSwap empty key", func() error { _, err := n.PutSwap("", nil, "v"); return err }},
		{"PutBatch nil map", func() error { return n.PutBatch(nil) }},
		{"PutBatch empty key", func() error {
			return n.PutBatch(map[string]string{"a": "1", "": "2", "c": "3"})
		}},
		{"PutSwapWithOthers nil others", func() error {
			_, err := n.PutSwapWithOthers("k", nil, "v", nil)
			return err
		}},
		{"PutSwapWithOthers empty other key", func() error {
			_, err := n.PutSwapWithOthers("k", nil, "v", map[string]string{"": "x"})
			return err
		}},
		{"PutSwapWithOthers empty key", func() error {
			_, err := n.PutSwapWithOthers("", nil, "v", map[string]string{"a": "x"})
			return err
		}},
		{"DeleteBatch nil keys", func() error { return n.DeleteBatch(nil) }},
		{"DeleteBatch empty key", func() error { return n.DeleteBatch([]string{"a", ""}) }},
	}

	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if err := c.run(); !errors.Is(err, store.ErrInvalidArgument) {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}

	if calls := rec.Calls(); len(calls) != 0 {
		t.Errorf("expected zero store calls, got %d: %v", len(calls), calls)
	}
}

func TestBatchTransformation(t *testing.T) {
	rec := &recordingStore{inner: newLocalStore()}
	n := mustNew(t, rec, "ns")

	input := map[string]string{"a": "1", "b": "", "c.d": "3"}
	if err := n.PutBatch(input); err != nil {
		t.Fatal(err)
	}
	keys := []string{"a", "b"}
	if err := n.DeleteBatch(keys); err != nil {
		t.Fatal(err)
	}
	others := map[string]string{"o1": "x", "o2": "y"}
	if _, err := n.PutSwapWithOthers("lock", nil, "me", others); err != nil {
		t.Fatal(err)
	}

	calls := rec.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected exactly one store call per operation, got %v", calls)
	}

	// every key carries the same prefix
	for k, v := range calls[0].keyValues {
		if !strings.HasPrefix(k, "dss.ns.") || input[strings.TrimPrefix(k, "dss.ns.")] != v {
			t.Errorf("unexpected batch entry %q=%q", k, v)
		}
	}
	if len(calls[0].keyValues) != len(input) {
		t.Errorf("batch size changed: %v", calls[0].keyValues)
	}
	if fmt.Sprint(calls[1].keys) != "[dss.ns.a dss.ns.b]" {
		t.Errorf("unexpected delete keys %v", calls[1].keys)
	}
	if calls[2].key != "dss.ns.lock" || calls[2].keyValues["dss.ns.o1"] != "x" || calls[2].keyValues["dss.ns.o2"] != "y" {
		t.Errorf("unexpected swap call %+v", calls[2])
	}

	// inputs are untouched
	if _, ok := input["a"]; !ok || len(input) != 3 {
		t.Errorf("PutBatch modified its input: %v", input)
	}
	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("DeleteBatch modified its input: %v", keys)
	}
	if _, ok := others["o1"]; !ok || len(others) != 2 {
		t.Errorf("PutSwapWithOthers modified its input: %v", others)
	}
}

func TestDeleteBatch(t *testing.T) {
	n := mustNew(t, newLocalStore(), "ns")

	if err := n.PutBatch(map[string]string{"a": "1", "b": "2", "c": "3"}); err != nil {
		t.Fatal(err)
	}
	if err := n.DeleteBatch([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"a", "b"} {
		if _, found, err := n.Get(k); err != nil || found {
			t.Errorf("expected %q to be absent (err=%v)", k, err)
		}
	}
	if v, found, _ := n.Get("c"); !found || v != "3" {
		t.Errorf("expected c=3, got %q found=%v", v, found)
	}
}

func TestPutSwap(t *testing.T) {
	shared := newLocalStore()
	n := mustNew(t, shared, "ns")

	ok, err := n.PutSwap("k", nil, "v1")
	if err != nil || !ok {
		t.Fatalf("expected first swap to apply, ok=%v err=%v", ok, err)
	}
	// the swap acted on the physical key
	if v, _, _ := shared.Get("dss.ns.k"); v != "v1" {
		t.Errorf("physical key holds %q", v)
	}

	ok, err = n.PutSwap("k", strPtr("other"), "v2")
	if err != nil || ok {
		t.Fatalf("expected mismatching swap to fail, ok=%v err=%v", ok, err)
	}
	if v, _, _ := n.Get("k"); v != "v1" {
		t.Errorf("value changed by failed swap: %q", v)
	}

	ok, err = n.PutSwap("k", strPtr("v1"), "v2")
	if err != nil || !ok {
		t.Fatalf("expected matching swap to apply, ok=%v err=%v", ok, err)
	}
	if v, _, _ := n.Get("k"); v != "v2" {
		t.Errorf("expected v2, got %q", v)
	}
}

func TestPutSwapWithOthersAtomicity(t *testing.T) {
	shared := newLocalStore()
	n := mustNew(t, shared, "ns")

	if err := n.Put("leader", "node-1"); err != nil {
		t.Fatal(err)
	}

	others := map[string]string{"epoch": "2", "members": "3"}

	ok, err := n.PutSwapWithOthers("leader", strPtr("node-9"), "node-2", others)
	if err != nil || ok {
		t.Fatalf("expected swap to fail, ok=%v err=%v", ok, err)
	}
	all, _ := n.GetPrefix("")
	if len(all) != 1 || all["leader"] != "node-1" {
		t.Errorf("failed swap wrote side effects: %v", all)
	}

	ok, err = n.PutSwapWithOthers("leader", strPtr("node-1"), "node-2", others)
	if err != nil || !ok {
		t.Fatalf("expected swap to apply, ok=%v err=%v", ok, err)
	}
	all, _ = n.GetPrefix("")
	want := map[string]string{"leader": "node-2", "epoch": "2", "members": "3"}
	if fmt.Sprint(all) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", all, want)
	}

	// the side writes live in the namespace as well
	if v, _, _ := shared.Get("dss.ns.epoch"); v != "2" {
		t.Errorf("physical side write holds %q", v)
	}
}

func TestErrorPropagation(t *testing.T) {
	t.Run("store error keeps its code", func(t *testing.T) {
		rec := &recordingStore{err: store.NewError(store.RetCUnavailable, "shard not ready")}
		n := mustNew(t, rec, "ns")

		if err := n.Put("k", "v"); !errors.Is(err, store.ErrUnavailable) {
			t.Errorf("expected Unavailable, got %v", err)
		}
		if _, err := n.GetPrefix(""); !errors.Is(err, store.ErrUnavailable) {
			t.Errorf("expected Unavailable, got %v", err)
		}
	})

	t.Run("foreign error becomes a store error", func(t *testing.T) {
		cause := errors.New("connection reset")
		rec := &recordingStore{err: cause}
		n := mustNew(t, rec, "ns")

		ops := map[string]error{
			"Put":          n.Put("k", "v"),
			"PutBatch":     n.PutBatch(map[string]string{"k": "v"}),
			"Delete":       n.Delete("k"),
			"DeleteBatch":  n.DeleteBatch([]string{"k"}),
			"DeletePrefix": n.DeletePrefix("k"),
		}
		_, _, ops["Get"] = n.Get("k")
		_, ops["PutSwap"] = n.PutSwap("k", nil, "v")
		_, ops["GetDBInfo"] = n.GetDBInfo()

		for op, err := range ops {
			if !errors.Is(err, store.ErrInternal) {
				t.Errorf("%s: expected InternalError, got %v", op, err)
			}
			if !errors.Is(err, cause) {
				t.Errorf("%s: expected the cause to be preserved, got %v", op, err)
			}
		}
	})
}

func TestDeletePrefixScope(t *testing.T) {
	rec := &recordingStore{inner: newLocalStore()}
	n := mustNew(t, rec, "ns")

	if err := n.DeletePrefix(""); err != nil {
		t.Fatal(err)
	}
	if err := n.DeletePrefix("runs."); err != nil {
		t.Fatal(err)
	}

	calls := rec.Calls()
	if calls[0].key != "dss.ns." || calls[1].key != "dss.ns.runs." {
		t.Errorf("unexpected prefixes %q, %q", calls[0].key, calls[1].key)
	}
}

func TestConcurrentUse(t *testing.T) {
	n := mustNew(t, newLocalStore(), "ns")

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("w%d.k%d", w, i)
				if err := n.Put(key, "v"); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if _, err := n.GetPrefix(fmt.Sprintf("w%d.", w)); err != nil {
					t.Errorf("GetPrefix failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	all, err := n.GetPrefix("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != workers*50 {
		t.Errorf("expected %d keys, got %d", workers*50, len(all))
	}
}
