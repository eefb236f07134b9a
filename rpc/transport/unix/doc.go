// Package unix implements the Unix domain socket transport of the RPC layer.
// It is meant for clients on the same machine as the dss server, e.g. a job
// runner reporting the status of its jobs to a local node.
//
// The package only provides the socket specific connectors:
//
//   - clientConnector: dials the socket path given as endpoint
//
//   - serverConnector: removes a stale socket file and listens on the path
//
// Framing, pooled buffers and request correlation come from the base package.
// The server uses 64 KB read buffers unless the config sets another size.
package unix
