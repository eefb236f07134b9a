package server

import (
	"fmt"

	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
)

// NewIStoreServerAdapter creates the adapter of one key-value shard
func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{namespaces: newNamespaces()}
}

type iStoreServerAdapterImpl struct {
	namespaces namespaces
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	s, err := adapter.namespaces.scope(req, s)
	if err != nil {
		return common.NewErrorResponseOf(err)
	}

	// Not every serializer keeps empty containers. Clients reject nil ones,
	// so a missing container here was sent empty.
	switch req.MsgType {
	case common.MsgTKVPut:
		err := s.Put(req.Key, req.Value)
		return common.NewPutResponse(err)
	case common.MsgTKVPutBatch:
		err := s.PutBatch(orEmptyMap(req.KeyValues))
		return common.NewPutBatchResponse(err)
	case common.MsgTKVPutSwap:
		var oldValue *string
		if req.HasOld {
			oldValue = &req.OldValue
		}
		var ok bool
		if req.KeyValues == nil {
			ok, err = s.PutSwap(req.Key, oldValue, req.Value)
		} else {
			ok, err = s.PutSwapWithOthers(req.Key, oldValue, req.Value, req.KeyValues)
		}
		return common.NewPutSwapResponse(ok, err)
	case common.MsgTKVGet:
		val, ok, err := s.Get(req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVGetPrefix:
		kvs, err := s.GetPrefix(req.Key)
		return common.NewGetPrefixResponse(kvs, err)
	case common.MsgTKVDelete:
		err := s.Delete(req.Key)
		return common.NewDeleteResponse(err)
	case common.MsgTKVDeleteBatch:
		err := s.DeleteBatch(orEmptySlice(req.Keys))
		return common.NewDeleteBatchResponse(err)
	case common.MsgTKVDeletePrefix:
		err := s.DeletePrefix(req.Key)
		return common.NewDeletePrefixResponse(err)
	case common.MsgTKVDBInfo:
		info, err := s.GetDBInfo()
		return common.NewDBInfoResponse(info, err)
	default:
		return common.NewErrorResponse(store.RetCInvalidOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
