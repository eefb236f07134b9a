package lstore

import (
	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
)

type storeImpl struct {
	db db.KVDB
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// Every operation runs directly against the database created by factory.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db: factory(),
	}
}

// apply checks feature support and runs the transaction.
//
// Thread-safety: This method is thread-safe, the db.KVDB serialises transactions.
func (s *storeImpl) apply(op string, txn db.Txn) (bool, error) {
	if need := txn.Features(); !s.db.SupportsFeature(need) {
		return false, store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
	}
	applied, err := s.db.Apply(txn)
	if err != nil {
		return false, store.WrapError(store.RetCInternalError, op+" failed", err)
	}
	return applied, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key, value string) error {
	if err := store.CheckKey("Put", key); err != nil {
		return err
	}
	_, err := s.apply("Put", db.Txn{Puts: map[string]string{key: value}})
	return err
}

func (s *storeImpl) PutBatch(keyValues map[string]string) error {
	if err := store.CheckKeyValues("PutBatch", keyValues); err != nil {
		return err
	}
	if len(keyValues) == 0 {
		return nil
	}
	_, err := s.apply("PutBatch", db.Txn{Puts: keyValues})
	return err
}

func (s *storeImpl) PutSwap(key string, oldValue *string, newValue string) (bool, error) {
	return s.PutSwapWithOthers(key, oldValue, newValue, nil)
}

func (s *storeImpl) PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (bool, error) {
	if err := store.CheckKey("PutSwap", key); err != nil {
		return false, err
	}
	if err := store.CheckKeyValues("PutSwap", others); err != nil {
		return false, err
	}

	puts := make(map[string]string, len(others)+1)
	for k, v := range others {
		puts[k] = v
	}
	// the swapped key wins over a duplicate in others
	puts[key] = newValue

	return s.apply("PutSwap", db.Txn{
		Compare: &db.Compare{Key: key, Value: oldValue},
		Puts:    puts,
	})
}

func (s *storeImpl) Get(key string) (string, bool, error) {
	if err := store.CheckKey("Get", key); err != nil {
		return "", false, err
	}
	if !s.db.SupportsFeature(db.FeatureGet) {
		return "", false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok, err := s.db.Get(key)
	if err != nil {
		return "", false, store.WrapError(store.RetCInternalError, "Get failed", err)
	}
	return val, ok, nil
}

func (s *storeImpl) GetPrefix(keyPrefix string) (map[string]string, error) {
	if !s.db.SupportsFeature(db.FeatureGetPrefix) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "GetPrefix operation is not supported")
	}
	kvs, err := s.db.GetPrefix(keyPrefix)
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "GetPrefix failed", err)
	}
	return kvs, nil
}

func (s *storeImpl) Delete(key string) error {
	if err := store.CheckKey("Delete", key); err != nil {
		return err
	}
	_, err := s.apply("Delete", db.Txn{Deletes: []string{key}})
	return err
}

func (s *storeImpl) DeleteBatch(keys []string) error {
	if err := store.CheckKeys("DeleteBatch", keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := s.apply("DeleteBatch", db.Txn{Deletes: keys})
	return err
}

func (s *storeImpl) DeletePrefix(keyPrefix string) error {
	_, err := s.apply("DeletePrefix", db.Txn{DeletePrefixes: []string{keyPrefix}})
	return err
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
