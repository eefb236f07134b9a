// Package serializer converts common.Message values to bytes and back for the
// RPC layer of the dynamic status store.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A 16 bit flag field marks the
//     present fields, so only those are written. It is the only format that
//     keeps a nil map or slice apart from an empty one.
//
//   - gobSerializer: Go's gob encoding. Works out of the box but produces
//     the largest payloads.
//
//   - jsonSerializer: JSON encoding, useful for debugging or for clients
//     written in other languages.
//
// Client and server must use the same serializer. JSON and GOB drop empty maps
// and slices, so the server treats a missing container of a batch request as
// empty. Clients reject nil containers before anything is sent.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewGetRequest("runs", "U123.status"))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(receivedData, &resp)
package serializer
