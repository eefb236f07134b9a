// Package base contains the stream transport shared by the tcp and unix
// packages. The protocol specific parts (dialing, listening, socket options)
// are plugged in through IClientConnector and IServerConnector.
//
// Wire Format:
//
// Every request and response is a frame of a fixed header followed by the
// payload. The header carries the payload length, the shard ID and a request
// ID. Responses echo the request ID, so a connection can have many requests in
// flight and answers may arrive out of order.
//
// Client:
//
// The client opens ConnectionsPerEndpoint connections to every endpoint and
// picks one round-robin per request. A connection that breaks fails its pending
// requests and is dialed again by its reader. A request is retried up to
// RetryCount times only while its frame could not be written. Once written, a
// timeout or a lost connection fails with transport.ErrNoResponse, since the
// server may already have applied it.
//
// Server:
//
// Each accepted connection gets a reader goroutine and a bounded set of workers
// that run the handler. Read buffers come from a sync.Pool. Header and payload
// of a response are written together with net.Buffers.
//
// Listen blocks until Shutdown closes the listener and returns nil afterwards.
// Open connections are served until the client closes them.
//
// Metrics:
//
// dss_rpc_connections_total and dss_rpc_connections_active are exported per
// transport name through VictoriaMetrics/metrics.
package base
