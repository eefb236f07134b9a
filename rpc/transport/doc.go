// Package transport holds the contracts between the RPC layer and the network.
// A transport moves opaque byte slices between client and server and tags every
// request with the shard it is meant for. Encoding the payload is the job of the
// serializer package.
//
// Implementations live in the sub packages http, tcp and unix.
//
//   - IRPCClientTransport: connects to one or more endpoints and sends requests,
//     blocking until the response arrives.
//
//   - IRPCServerTransport: accepts requests and passes them with their shard ID
//     to a ServerHandleFunc.
package transport
