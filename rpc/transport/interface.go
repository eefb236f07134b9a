package transport

import (
	"errors"

	"github.com/ValentinKolb/dss/rpc/common"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrNotSent marks a request that failed before it reached the server.
	// Client transports retry only these.
	ErrNotSent = errors.New("request not sent")

	// ErrNoResponse marks a request that was sent but never answered. The
	// server may have executed it, so it is not retried.
	ErrNoResponse = errors.New("request sent but not answered, outcome unknown")
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving requests.
	// It returns nil after Shutdown was called.
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting new connections and closes the listener
	Shutdown() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// A request is retried on another connection only while it could not be
	// sent (ErrNotSent). Once it was written, a missing answer fails with
	// ErrNoResponse, since executing a swap twice is not safe.
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
