package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dss/rpc/common"
)

// NewJSONSerializer returns a serializer for JSON. It is the slowest format but
// the messages can be read in a packet capture.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializer{}
}

type jsonSerializer struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializer) Serialize(msg common.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json: encode %s: %w", msg.MsgType, err)
	}
	return b, nil
}

func (jsonSerializer) Deserialize(b []byte, msg *common.Message) error {
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("json: decode message: %w", err)
	}
	return nil
}
