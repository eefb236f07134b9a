package serializer

import "github.com/ValentinKolb/dss/rpc/common"

// IRPCSerializer encodes the messages exchanged between client and server.
// Client and server must use the same implementation.
type IRPCSerializer interface {
	// Serialize encodes msg for the transport
	Serialize(msg common.Message) ([]byte, error)

	// Deserialize decodes b into msg. Fields missing in b keep the value msg already has.
	Deserialize(b []byte, msg *common.Message) error
}
