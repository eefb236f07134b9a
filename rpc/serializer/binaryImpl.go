package serializer

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte MsgType, 2 bytes flags (big endian), then every present field
// in flag order. Strings and byte slices are prefixed with a uint32 length,
// maps and slices with a uint32 count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasNamespace uint16 = 1 << iota
	hasKey
	hasValue
	hasOldValue
	hasOld
	hasKeyValues
	hasKeys
	hasOk
	hasErr
	hasErrCode
	hasMeta
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, headerSize, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Namespace != "" {
		flags |= hasNamespace
		result = appendString(result, msg.Namespace)
	}
	if msg.Key != "" {
		flags |= hasKey
		result = appendString(result, msg.Key)
	}
	if msg.Value != "" {
		flags |= hasValue
		result = appendString(result, msg.Value)
	}
	if msg.OldValue != "" {
		flags |= hasOldValue
		result = appendString(result, msg.OldValue)
	}
	if msg.HasOld {
		flags |= hasOld
	}

	// nil and empty maps/slices are kept apart
	if msg.KeyValues != nil {
		flags |= hasKeyValues
		keys := make([]string, 0, len(msg.KeyValues))
		for k := range msg.KeyValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		result = binary.BigEndian.AppendUint32(result, uint32(len(keys)))
		for _, k := range keys {
			result = appendString(result, k)
			result = appendString(result, msg.KeyValues[k])
		}
	}
	if msg.Keys != nil {
		flags |= hasKeys
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Keys)))
		for _, k := range msg.Keys {
			result = appendString(result, k)
		}
	}

	if msg.Ok {
		flags |= hasOk
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}
	if msg.ErrCode != store.RetCSuccess {
		flags |= hasErrCode
		result = binary.BigEndian.AppendUint64(result, uint64(msg.ErrCode))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Meta)))
		result = append(result, msg.Meta...)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:headerSize], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{}

	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:headerSize])

	r := reader{data: data, pos: headerSize}

	if flags&hasNamespace != 0 {
		msg.Namespace = r.string("namespace")
	}
	if flags&hasKey != 0 {
		msg.Key = r.string("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.string("value")
	}
	if flags&hasOldValue != 0 {
		msg.OldValue = r.string("old value")
	}
	msg.HasOld = flags&hasOld != 0

	if flags&hasKeyValues != 0 {
		n := r.count("key values")
		msg.KeyValues = make(map[string]string, n)
		for i := 0; i < n && r.err == nil; i++ {
			k := r.string("key values")
			msg.KeyValues[k] = r.string("key values")
		}
	}
	if flags&hasKeys != 0 {
		n := r.count("keys")
		msg.Keys = make([]string, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, r.string("keys"))
		}
	}

	msg.Ok = flags&hasOk != 0

	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}
	if flags&hasErrCode != 0 {
		msg.ErrCode = store.RetCode(r.uint64("error code"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	if r.err != nil {
		return r.err
	}
	if r.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-r.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	// Add sizes for fields that require length encoding
	for _, s := range []string{msg.Namespace, msg.Key, msg.Value, msg.OldValue, msg.Err} {
		if s != "" {
			size += 4 + len(s)
		}
	}
	if msg.KeyValues != nil {
		size += 4
		for k, v := range msg.KeyValues {
			size += 8 + len(k) + len(v)
		}
	}
	if msg.Keys != nil {
		size += 4
		for _, k := range msg.Keys {
			size += 4 + len(k)
		}
	}
	if msg.ErrCode != store.RetCSuccess {
		size += 8
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader decodes fields from data. The first error sticks, later reads return zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *reader) uint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// count reads an element count and rejects counts that can not fit into the rest of data.
func (r *reader) count(field string) int {
	n := int(r.uint32(field))
	if r.err == nil && n > (len(r.data)-r.pos)/4 {
		r.err = fmt.Errorf("invalid element count %d for %s", n, field)
		return 0
	}
	return n
}

func (r *reader) string(field string) string {
	n := int(r.uint32(field))
	if !r.need(n, field) {
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *reader) bytes(field string) []byte {
	n := int(r.uint32(field))
	if !r.need(n, field) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}
