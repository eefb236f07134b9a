package client

import (
	"fmt"

	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/serializer"
	"github.com/ValentinKolb/dss/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation if an RPC client
// Used by the RPCStore and RPCLockMgr with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	namespace  string
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// connect connects the transport and builds the adapter shared by all RPC clients
func connect(
	shardId uint64,
	namespace string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (rpcClientAdapter, error) {
	if err := transport.Connect(config); err != nil {
		return rpcClientAdapter{}, err
	}
	return rpcClientAdapter{
		shardId:    shardId,
		namespace:  namespace,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

// Close closes the underlying transport
func (a *rpcClientAdapter) Close() error {
	return a.transport.Close()
}

// invoke sends req to the shard of the adapter, see invokeRPCRequest
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.shardId, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type.
// Errors reported by the server are returned as *store.Error with the code the server sent.
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "RPC: failed to serialize request", err)
	}

	// Send the request
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, store.WrapError(store.RetCUnavailable, fmt.Sprintf("RPC: %s request to shard %d failed", req.MsgType, shardId), err)
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.WrapError(store.RetCInternalError, "RPC: failed to deserialize response", err)
	}

	// Check if the response is an error response
	if err := common.MessageError(resp); err != nil {
		return nil, err
	}
	if resp.MsgType == common.MsgTError {
		return nil, store.NewError(store.RetCInternalError, "RPC: error response without message")
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("RPC: unexpected message type %s, expected %s", resp.MsgType, req.MsgType))
	}

	// Return the response
	return resp, nil
}
