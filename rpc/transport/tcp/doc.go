// Package tcp implements the TCP socket transport of the RPC layer. It plugs
// TCP specific connectors into the base package, which provides connection
// pooling, buffer reuse and request routing.
//
// Key Components:
//
//   - clientConnector: TCP implementation of base.IClientConnector
//
//   - serverConnector: TCP implementation of base.IServerConnector
//
// Both sides apply the socket settings of their config (no delay, keep-alive,
// linger, socket buffer sizes) to every connection. The default server buffer
// size is 512 KB.
package tcp
