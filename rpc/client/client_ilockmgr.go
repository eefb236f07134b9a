package client

import (
	"github.com/ValentinKolb/dss/lib/lockmgr"
	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/serializer"
	"github.com/ValentinKolb/dss/rpc/transport"
)

// NewRPCLockMgr creates a new RPC ILockManager
// The function takes a shard ID, a namespace, a config, a transport and a serializer as parameters.
// Locks of different namespaces never conflict, even with equal keys.
// It returns a lockmgr.ILockManager and an error
func NewRPCLockMgr(
	shardId uint64,
	namespace string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (lockmgr.ILockManager, error) {
	adapter, err := connect(shardId, namespace, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcLockMgr{adapter}, nil
}

type rpcLockMgr struct {
	rpcClientAdapter
}

var _ lockmgr.ILockManager = (*rpcLockMgr)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockmgr package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcLockMgr) AcquireLock(key string) (bool, string, error) {
	resp, err := i.invoke(common.NewAcquireRequest(i.namespace, key))
	if err != nil {
		return false, "", err
	}
	return resp.Ok, resp.Value, nil
}

func (i *rpcLockMgr) ReleaseLock(key string, ownerID string) (bool, error) {
	resp, err := i.invoke(common.NewReleaseRequest(i.namespace, key, ownerID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
