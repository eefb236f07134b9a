package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/util"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTPut          CommandType = iota // Insert or update an entry.
	CommandTPutBatch                        // Insert or update many entries.
	CommandTPutSwap                         // Compare-and-swap one entry, optionally with side writes.
	CommandTDelete                          // Delete an entry.
	CommandTDeleteBatch                     // Delete many entries.
	CommandTDeletePrefix                    // Delete every entry below a prefix.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	case CommandTPutBatch:
		return "PutBatch"
	case CommandTPutSwap:
		return "PutSwap"
	case CommandTDelete:
		return "Delete"
	case CommandTDeleteBatch:
		return "DeleteBatch"
	case CommandTDeletePrefix:
		return "DeletePrefix"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

const flagHasOld byte = 1 << 0

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type      CommandType
	Key       string            // Key, or prefix for CommandTDeletePrefix
	HasOld    bool              // PutSwap: OldValue is set, otherwise the key must be absent
	OldValue  string            // PutSwap: expected value
	Value     string            // Put / PutSwap: new value
	KeyValues map[string]string // PutBatch: entries, PutSwap: side writes
	Keys      []string          // DeleteBatch: keys
}

// ToTxn converts the command into the database transaction that executes it.
func (command *Command) ToTxn() (db.Txn, error) {
	switch command.Type {
	case CommandTPut:
		return db.Txn{Puts: map[string]string{command.Key: command.Value}}, nil
	case CommandTPutBatch:
		return db.Txn{Puts: command.KeyValues}, nil
	case CommandTPutSwap:
		puts := make(map[string]string, len(command.KeyValues)+1)
		for k, v := range command.KeyValues {
			puts[k] = v
		}
		puts[command.Key] = command.Value

		cmp := &db.Compare{Key: command.Key}
		if command.HasOld {
			old := command.OldValue
			cmp.Value = &old
		}
		return db.Txn{Compare: cmp, Puts: puts}, nil
	case CommandTDelete:
		return db.Txn{Deletes: []string{command.Key}}, nil
	case CommandTDeleteBatch:
		return db.Txn{Deletes: command.Keys}, nil
	case CommandTDeletePrefix:
		return db.Txn{DeletePrefixes: []string{command.Key}}, nil
	default:
		return db.Txn{}, fmt.Errorf("unknown command type %d", command.Type)
	}
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := 1 + 1 // Type + Flags
	size += 4 + len(command.Key)
	size += 4 + len(command.OldValue)
	size += 4 + len(command.Value)
	size += 4 // KeyValues count
	for k, v := range command.KeyValues {
		size += 4 + len(k) + 4 + len(v)
	}
	size += 4 // Keys count
	for _, k := range command.Keys {
		size += 4 + len(k)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 1 byte for flags (bit 0: HasOld),
// key, old value and value as length prefixed strings,
// 4 bytes KeyValues count followed by key/value strings (sorted by key),
// 4 bytes Keys count followed by key strings.
// All lengths are uint32 big endian.
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	if command.HasOld {
		result[1] |= flagHasOld
	}

	off := 2
	off = putString(result, off, command.Key)
	off = putString(result, off, command.OldValue)
	off = putString(result, off, command.Value)

	// sorted for a deterministic log entry
	binary.BigEndian.PutUint32(result[off:], uint32(len(command.KeyValues)))
	off += 4
	for _, k := range util.SortedKeys(command.KeyValues) {
		off = putString(result, off, k)
		off = putString(result, off, command.KeyValues[k])
	}

	binary.BigEndian.PutUint32(result[off:], uint32(len(command.Keys)))
	off += 4
	for _, k := range command.Keys {
		off = putString(result, off, k)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	// Minimum size: Type + Flags + 3 empty strings + 2 counts
	if len(data) < 2+3*4+2*4 {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.HasOld = data[1]&flagHasOld != 0

	var err error
	off := 2
	if command.Key, off, err = getString(data, off); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	if command.OldValue, off, err = getString(data, off); err != nil {
		return fmt.Errorf("old value: %w", err)
	}
	if command.Value, off, err = getString(data, off); err != nil {
		return fmt.Errorf("value: %w", err)
	}

	n, off, err := getCount(data, off)
	if err != nil {
		return fmt.Errorf("key values: %w", err)
	}
	command.KeyValues = nil
	if n > 0 {
		command.KeyValues = make(map[string]string, n)
	}
	for i := 0; i < n; i++ {
		var k, v string
		if k, off, err = getString(data, off); err != nil {
			return fmt.Errorf("key values[%d] key: %w", i, err)
		}
		if v, off, err = getString(data, off); err != nil {
			return fmt.Errorf("key values[%d] value: %w", i, err)
		}
		command.KeyValues[k] = v
	}

	n, off, err = getCount(data, off)
	if err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	command.Keys = nil
	if n > 0 {
		command.Keys = make([]string, n)
	}
	for i := 0; i < n; i++ {
		if command.Keys[i], off, err = getString(data, off); err != nil {
			return fmt.Errorf("keys[%d]: %w", i, err)
		}
	}

	if off != len(data) {
		return fmt.Errorf("%d trailing bytes after command", len(data)-off)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func putString(buf []byte, off int, s string) int {
	binary.BigEndian.PutUint32(buf[off:], uint32(len(s)))
	off += 4
	return off + copy(buf[off:], s)
}

func getCount(data []byte, off int) (int, int, error) {
	if len(data) < off+4 {
		return 0, off, fmt.Errorf("data too short for length at offset %d", off)
	}
	n := int(binary.BigEndian.Uint32(data[off:]))
	// every element needs at least 4 bytes
	if n > (len(data)-off-4)/4 {
		return 0, off, fmt.Errorf("count %d exceeds remaining data", n)
	}
	return n, off + 4, nil
}

func getString(data []byte, off int) (string, int, error) {
	if len(data) < off+4 {
		return "", off, fmt.Errorf("data too short for length at offset %d", off)
	}
	n := int(binary.BigEndian.Uint32(data[off:]))
	off += 4
	if len(data) < off+n {
		return "", off, fmt.Errorf("data too short for string of length %d", n)
	}
	return string(data[off : off+n]), off + n, nil
}
