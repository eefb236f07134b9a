package client

import (
	"fmt"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/serializer"
	"github.com/ValentinKolb/dss/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a namespace, a config, a transport and a serializer as parameters.
// With a non-empty namespace all operations work on the namespaced view of the shard
// (see the dss package), an empty namespace addresses the raw shard store.
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	namespace string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	adapter, err := connect(shardId, namespace, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcStore{adapter}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

var _ store.IStore = (*rpcStore)(nil)

// checkNotNil rejects nil containers for namespaced requests. Serializers like json
// do not keep nil and empty apart, so the check can not be left to the server.
func (i *rpcStore) checkNotNil(op, name string, isNil bool) error {
	if i.namespace != "" && isNil {
		return store.NewError(store.RetCInvalidArgument, fmt.Sprintf("%s: %s must not be nil", op, name))
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Put(key, value string) error {
	_, err := i.invoke(common.NewPutRequest(i.namespace, key, value))
	return err
}

func (i *rpcStore) PutBatch(keyValues map[string]string) error {
	if err := i.checkNotNil("PutBatch", "keyValues", keyValues == nil); err != nil {
		return err
	}
	_, err := i.invoke(common.NewPutBatchRequest(i.namespace, keyValues))
	return err
}

func (i *rpcStore) PutSwap(key string, oldValue *string, newValue string) (bool, error) {
	resp, err := i.invoke(common.NewPutSwapRequest(i.namespace, key, oldValue, newValue, nil))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (bool, error) {
	if err := i.checkNotNil("PutSwap", "others", others == nil); err != nil {
		return false, err
	}
	if others == nil {
		others = map[string]string{}
	}
	resp, err := i.invoke(common.NewPutSwapRequest(i.namespace, key, oldValue, newValue, others))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Get(key string) (string, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(i.namespace, key))
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) GetPrefix(keyPrefix string) (map[string]string, error) {
	resp, err := i.invoke(common.NewGetPrefixRequest(i.namespace, keyPrefix))
	if err != nil {
		return nil, err
	}
	if resp.KeyValues == nil {
		return map[string]string{}, nil
	}
	return resp.KeyValues, nil
}

func (i *rpcStore) Delete(key string) error {
	_, err := i.invoke(common.NewDeleteRequest(i.namespace, key))
	return err
}

func (i *rpcStore) DeleteBatch(keys []string) error {
	if err := i.checkNotNil("DeleteBatch", "keys", keys == nil); err != nil {
		return err
	}
	_, err := i.invoke(common.NewDeleteBatchRequest(i.namespace, keys))
	return err
}

func (i *rpcStore) DeletePrefix(keyPrefix string) error {
	_, err := i.invoke(common.NewDeletePrefixRequest(i.namespace, keyPrefix))
	return err
}

// GetDBInfo returns the info of the database behind the shard
func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invoke(common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	return resp.DBInfo()
}
