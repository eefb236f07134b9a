package lockmgr

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock acquires the lock for the given key.
	// Return a boolean indicating whether the lock was acquired, the owner ID needed
	// to release it, and an error if any.
	AcquireLock(key string) (ok bool, ownerID string, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return true if the lock did not exist.
	ReleaseLock(key string, ownerID string) (ok bool, err error)
}
