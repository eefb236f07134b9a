// Package http implements the HTTP transport of the RPC layer of the dynamic
// status store.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Every request is a
//     POST to <endpoint>/<shardId>; endpoints are used round-robin. A request
//     that could not be written is retried on the next endpoint, one that was
//     written but not answered fails with transport.ErrNoResponse.
//
//   - httpServerTransport: Implements IRPCServerTransport. Routes POST /{shardId}
//     to the registered handler and serves the process metrics in the
//     prometheus text format on GET /metrics.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use once Connect returned.
package http
