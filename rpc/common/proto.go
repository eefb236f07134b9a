package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Namespace scopes a request to dss.<namespace>. Empty means the raw shard store.
	Namespace string `json:"namespace,omitempty"`

	// General fields
	Key       string            `json:"key,omitempty"`        // Used for: Put, PutSwap, Get, GetPrefix, Delete, DeletePrefix, Acquire, Release
	Value     string            `json:"value,omitempty"`      // Used for: Put, PutSwap (request), Get, Acquire (response), Release (request)
	OldValue  string            `json:"old_value,omitempty"`  // Used for: PutSwap, only if HasOld is set
	HasOld    bool              `json:"has_old,omitempty"`    // Used for: PutSwap. false means the key must be absent
	KeyValues map[string]string `json:"key_values,omitempty"` // Used for: PutBatch, PutSwap (request), GetPrefix (response)
	Keys      []string          `json:"keys,omitempty"`       // Used for: DeleteBatch

	// Response only fields
	Ok      bool          `json:"ok,omitempty"`       // Used for: Get, PutSwap, Acquire, Release responses
	Err     string        `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode store.RetCode `json:"err_code,omitempty"` // Code of Err, restores typed errors on the client

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: DBInfo responses (json encoded db.DatabaseInfo)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPutRequest creates a new Put request
func NewPutRequest(namespace, key, value string) *Message {
	return &Message{
		MsgType:   MsgTKVPut,
		Namespace: namespace,
		Key:       key,
		Value:     value,
	}
}

// NewPutResponse creates a new Put response
func NewPutResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVPut}, err)
}

// NewPutBatchRequest creates a new PutBatch request
func NewPutBatchRequest(namespace string, keyValues map[string]string) *Message {
	return &Message{
		MsgType:   MsgTKVPutBatch,
		Namespace: namespace,
		KeyValues: keyValues,
	}
}

// NewPutBatchResponse creates a new PutBatch response
func NewPutBatchResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVPutBatch}, err)
}

// NewPutSwapRequest creates a new PutSwap request. others may be nil.
func NewPutSwapRequest(namespace, key string, oldValue *string, newValue string, others map[string]string) *Message {
	msg := &Message{
		MsgType:   MsgTKVPutSwap,
		Namespace: namespace,
		Key:       key,
		Value:     newValue,
		KeyValues: others,
	}
	if oldValue != nil {
		msg.HasOld = true
		msg.OldValue = *oldValue
	}
	return msg
}

// NewPutSwapResponse creates a new PutSwap response
func NewPutSwapResponse(ok bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVPutSwap, Ok: ok}, err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(namespace, key string) *Message {
	return &Message{
		MsgType:   MsgTKVGet,
		Namespace: namespace,
		Key:       key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value string, ok bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVGet, Value: value, Ok: ok}, err)
}

// NewGetPrefixRequest creates a new GetPrefix request
func NewGetPrefixRequest(namespace, prefix string) *Message {
	return &Message{
		MsgType:   MsgTKVGetPrefix,
		Namespace: namespace,
		Key:       prefix,
	}
}

// NewGetPrefixResponse creates a new GetPrefix response
func NewGetPrefixResponse(keyValues map[string]string, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVGetPrefix, KeyValues: keyValues}, err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(namespace, key string) *Message {
	return &Message{
		MsgType:   MsgTKVDelete,
		Namespace: namespace,
		Key:       key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVDelete}, err)
}

// NewDeleteBatchRequest creates a new DeleteBatch request
func NewDeleteBatchRequest(namespace string, keys []string) *Message {
	return &Message{
		MsgType:   MsgTKVDeleteBatch,
		Namespace: namespace,
		Keys:      keys,
	}
}

// NewDeleteBatchResponse creates a new DeleteBatch response
func NewDeleteBatchResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVDeleteBatch}, err)
}

// NewDeletePrefixRequest creates a new DeletePrefix request
func NewDeletePrefixRequest(namespace, prefix string) *Message {
	return &Message{
		MsgType:   MsgTKVDeletePrefix,
		Namespace: namespace,
		Key:       prefix,
	}
}

// NewDeletePrefixResponse creates a new DeletePrefix response
func NewDeletePrefixResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVDeletePrefix}, err)
}

// NewDBInfoRequest creates a new DBInfo request
func NewDBInfoRequest() *Message {
	return &Message{
		MsgType: MsgTKVDBInfo,
	}
}

// NewDBInfoResponse creates a new DBInfo response. The info travels json encoded in Meta.
func NewDBInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := &Message{MsgType: MsgTKVDBInfo}
	if err != nil {
		return withErr(msg, err)
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return withErr(msg, store.WrapError(store.RetCInternalError, "DBInfo: failed to encode info", err))
	}
	msg.Meta = meta
	return msg
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(namespace, key string) *Message {
	return &Message{
		MsgType:   MsgTLCKAcquire,
		Namespace: namespace,
		Key:       key,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, ownerID string, err error) *Message {
	return withErr(&Message{MsgType: MsgTLCKAcquire, Ok: ok, Value: ownerID}, err)
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(namespace, key, ownerID string) *Message {
	return &Message{
		MsgType:   MsgTLCKRelease,
		Namespace: namespace,
		Key:       key,
		Value:     ownerID,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTLCKRelease, Ok: ok}, err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		ErrCode: code,
	}
}

// NewErrorResponseOf creates a new Error response carrying err
func NewErrorResponseOf(err error) *Message {
	return withErr(&Message{MsgType: MsgTError}, err)
}

// --------------------------------------------------------------------------
// Errors on the wire
// --------------------------------------------------------------------------

// withErr stores err in msg. A *store.Error travels as its code plus its message
// without the code prefix, so MessageError rebuilds the same error text.
func withErr(msg *Message, err error) *Message {
	if err == nil {
		return msg
	}
	msg.ErrCode = store.CodeOf(err)
	msg.Err = errorText(err)
	return msg
}

func errorText(err error) string {
	se, ok := err.(*store.Error)
	if !ok {
		return err.Error()
	}
	if se.Err != nil {
		return fmt.Sprintf("%s: %v", se.Msg, se.Err)
	}
	return se.Msg
}

// MessageError returns the error carried by msg as a *store.Error, or nil.
func MessageError(msg *Message) error {
	if msg.Err == "" && msg.ErrCode == store.RetCSuccess {
		return nil
	}
	code := msg.ErrCode
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, msg.Err)
}

// DBInfo decodes the db.DatabaseInfo of a DBInfo response.
func (m *Message) DBInfo() (db.DatabaseInfo, error) {
	var info db.DatabaseInfo
	if len(m.Meta) == 0 {
		return info, store.NewError(store.RetCInvalidOperation, "DBInfo: response carries no info")
	}
	if err := json.Unmarshal(m.Meta, &info); err != nil {
		return info, store.WrapError(store.RetCInvalidOperation, "DBInfo: failed to decode info", err)
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:        "success",
	MsgTError:          "error",
	MsgTKVPut:          "put",
	MsgTKVPutBatch:     "putBatch",
	MsgTKVPutSwap:      "putSwap",
	MsgTKVGet:          "get",
	MsgTKVGetPrefix:    "getPrefix",
	MsgTKVDelete:       "delete",
	MsgTKVDeleteBatch:  "deleteBatch",
	MsgTKVDeletePrefix: "deletePrefix",
	MsgTKVDBInfo:       "dbInfo",
	MsgTLCKAcquire:     "acquire",
	MsgTLCKRelease:     "release",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVPut          // Put a key-value pair
	MsgTKVPutBatch     // Put many key-value pairs atomically
	MsgTKVPutSwap      // Compare and swap, optionally with side writes
	MsgTKVGet          // Get a value by key
	MsgTKVGetPrefix    // Get all key-value pairs below a prefix
	MsgTKVDelete       // Delete a key-value pair
	MsgTKVDeleteBatch  // Delete many keys atomically
	MsgTKVDeletePrefix // Delete all keys below a prefix
	MsgTKVDBInfo       // Get information about the database

	// ILockManager operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock
)
