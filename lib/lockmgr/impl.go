package lockmgr

import (
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/google/uuid"
)

// free is the value of a released lock. Owner IDs are never empty, so it can
// not collide with a held lock.
const free = ""

type lockMgrImpl struct {
	store store.IStore
}

// NewLockManager creates a lock manager that keeps its locks in s.
func NewLockManager(s store.IStore) ILockManager {
	return &lockMgrImpl{
		store: s,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string) (bool, string, error) {
	ownerID := uuid.NewString()

	// Never locked: the key must not exist (atomic CAS operation)
	ok, err := lm.store.PutSwap(key, nil, ownerID)
	if err != nil || ok {
		return ok, ownerIDIf(ok, ownerID), err
	}

	// Released before: the key holds the free marker
	marker := free
	ok, err = lm.store.PutSwap(key, &marker, ownerID)
	if err != nil {
		return false, "", err
	}
	return ok, ownerIDIf(ok, ownerID), nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID string) (bool, error) {
	if err := store.CheckKey("ReleaseLock", ownerID); err != nil {
		return false, err
	}

	// Mark the lock as free, only if it is owned by us
	ok, err := lm.store.PutSwap(key, &ownerID, free)
	if err != nil || ok {
		return ok, err
	}

	// Someone else holds the lock or there is nothing to release
	value, found, err := lm.store.Get(key)
	if err != nil {
		return false, err
	}
	return !found || value == free, nil
}

func ownerIDIf(ok bool, ownerID string) string {
	if ok {
		return ownerID
	}
	return ""
}
