package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplPebble Implementation = "pebble"
	ImplBolt   Implementation = "bolt"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut          Feature = 1 << iota // Support for single and batch puts
	FeatureGet                              // Support for Get operations
	FeatureGetPrefix                        // Support for prefix range reads
	FeatureDelete                           // Support for single and batch deletes
	FeatureDeletePrefix                     // Support for prefix range deletes
	FeatureSwap                             // Support for guarded (compare-and-swap) transactions
	FeatureSave                             // Support for Save operations
	FeatureLoad                             // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureGetPrefix:
		return "GetPrefix"
	case FeatureDelete:
		return "Delete"
	case FeatureDeletePrefix:
		return "DeletePrefix"
	case FeatureSwap:
		return "Swap"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Keys              int            `json:"keys"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// Compare guards a transaction. The transaction is only applied if the value
// stored for Key equals *Value. A nil Value requires the key to be absent.
type Compare struct {
	Key   string
	Value *string
}

// Txn is the only write primitive of a KVDB. All parts of a transaction are
// applied atomically, in the order DeletePrefixes, Deletes, Puts.
type Txn struct {
	Compare        *Compare
	Puts           map[string]string
	Deletes        []string
	DeletePrefixes []string
}

// Features returns the features a database needs to apply the transaction.
func (txn *Txn) Features() Feature {
	var f Feature
	if txn.Compare != nil {
		f |= FeatureSwap
	}
	if len(txn.Puts) > 0 {
		f |= FeaturePut
	}
	if len(txn.Deletes) > 0 {
		f |= FeatureDelete
	}
	if len(txn.DeletePrefixes) > 0 {
		f |= FeatureDeletePrefix
	}
	return f
}

// Matches reports whether the compare guard holds for the given lookup result.
func (c *Compare) Matches(current string, found bool) bool {
	if c.Value == nil {
		return !found
	}
	return found && current == *c.Value
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// Snapshot is a point-in-time view of a KVDB that can be written out later.
type Snapshot interface {
	// Save writes the captured state in the same format as KVDB.Save.
	Save(w io.Writer) error

	// Close releases the resources held by the snapshot.
	Close() error
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered string key-value database implementations.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
// All methods must be safe for concurrent use.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Apply atomically applies a transaction. If the transaction has a Compare
	// guard that does not hold, nothing is written and applied is false.
	// Either every part of the transaction becomes visible or none does.
	Apply(txn Txn) (applied bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value string, loaded bool, err error)

	// GetPrefix returns every entry whose key starts with prefix.
	// The keys in the returned map are the full stored keys.
	GetPrefix(prefix string) (entries map[string]string, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Snapshot captures the current state of the database. Writes applied after
	// Snapshot returned are not visible in the snapshot. The caller must Close it.
	Snapshot() (snap Snapshot, err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// AllFeatures is the feature set of every engine shipped with this module.
const AllFeatures = FeaturePut | FeatureGet | FeatureGetPrefix | FeatureDelete |
	FeatureDeletePrefix | FeatureSwap | FeatureSave | FeatureLoad

// FeatureList expands a feature bit set into its single features.
func FeatureList(set Feature) []Feature {
	var out []Feature
	for f := FeaturePut; f <= FeatureLoad; f <<= 1 {
		if set&f == f {
			out = append(out, f)
		}
	}
	return out
}
