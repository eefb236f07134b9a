package lockmgr

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/engines/memory"
	"github.com/ValentinKolb/dss/lib/dss"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/lib/store/lstore"
)

func newStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return memory.NewMemoryDB(nil) })
}

func TestAcquireRelease(t *testing.T) {
	lm := NewLockManager(newStore())

	ok, owner, err := lm.AcquireLock("res")
	if err != nil || !ok || owner == "" {
		t.Fatalf("expected to acquire, ok=%v owner=%q err=%v", ok, owner, err)
	}

	ok, other, err := lm.AcquireLock("res")
	if err != nil || ok || other != "" {
		t.Fatalf("expected second acquire to fail, ok=%v owner=%q err=%v", ok, other, err)
	}

	ok, err = lm.ReleaseLock("res", "not-the-owner")
	if err != nil || ok {
		t.Fatalf("expected release by a stranger to fail, ok=%v err=%v", ok, err)
	}

	ok, err = lm.ReleaseLock("res", owner)
	if err != nil || !ok {
		t.Fatalf("expected release by the owner to succeed, ok=%v err=%v", ok, err)
	}

	// releasing twice reports success, there is nothing left to release
	ok, err = lm.ReleaseLock("res", owner)
	if err != nil || !ok {
		t.Fatalf("expected second release to succeed, ok=%v err=%v", ok, err)
	}

	// the lock can be taken again
	ok, owner2, err := lm.AcquireLock("res")
	if err != nil || !ok || owner2 == owner {
		t.Fatalf("expected to reacquire with a new owner, ok=%v owner=%q err=%v", ok, owner2, err)
	}
}

func TestReleaseUnknownLock(t *testing.T) {
	lm := NewLockManager(newStore())

	ok, err := lm.ReleaseLock("never-locked", "someone")
	if err != nil || !ok {
		t.Fatalf("expected release of a missing lock to succeed, ok=%v err=%v", ok, err)
	}

	if _, err := lm.ReleaseLock("never-locked", ""); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument for an empty owner, got %v", err)
	}
}

func TestConcurrentAcquire(t *testing.T) {
	lm := NewLockManager(newStore())

	const workers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ok, _, err := lm.AcquireLock("contended")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners.Load())
	}
}

func TestNamespacedLocks(t *testing.T) {
	shared := newStore()

	a, err := dss.New(shared, "team-a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := dss.New(shared, "team-b")
	if err != nil {
		t.Fatal(err)
	}

	lockA := NewLockManager(a)
	lockB := NewLockManager(b)

	okA, ownerA, err := lockA.AcquireLock("printer")
	if err != nil || !okA {
		t.Fatalf("team-a failed to lock, err=%v", err)
	}
	// same lock name, different namespace
	okB, _, err := lockB.AcquireLock("printer")
	if err != nil || !okB {
		t.Fatalf("team-b failed to lock, err=%v", err)
	}

	// the lock lives under the namespace prefix
	if v, found, _ := shared.Get("dss.team-a.printer"); !found || v != ownerA {
		t.Errorf("expected physical lock key to hold the owner, got %q found=%v", v, found)
	}
}
