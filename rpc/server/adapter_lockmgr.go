package server

import (
	"fmt"

	"github.com/ValentinKolb/dss/lib/lockmgr"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
)

// NewLockManagerServerAdapter creates the adapter of one lock shard
func NewLockManagerServerAdapter() IRPCServerAdapter {
	return &lockMgrServerAdapter{namespaces: newNamespaces()}
}

type lockMgrServerAdapter struct {
	namespaces namespaces
}

func (adapter *lockMgrServerAdapter) Handle(req *common.Message, s store.IStore) (resp *common.Message) {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	s, err := adapter.namespaces.scope(req, s)
	if err != nil {
		return common.NewErrorResponseOf(err)
	}

	// The lock manager keeps no state besides the store
	locks := lockmgr.NewLockManager(s)

	switch req.MsgType {
	case common.MsgTLCKAcquire:
		ok, ownerID, err := locks.AcquireLock(req.Key)
		return common.NewAcquireResponse(ok, ownerID, err)
	case common.MsgTLCKRelease:
		ok, err := locks.ReleaseLock(req.Key, req.Value)
		return common.NewReleaseResponse(ok, err)
	default:
		return common.NewErrorResponse(store.RetCInvalidOperation,
			fmt.Sprintf("RPC LockManagerAdapter - Unsupported message type: %s", req.MsgType))
	}
}
