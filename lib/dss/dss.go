package dss

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("dss")

const (
	// KeyPrefix is the first segment of every physical key written by a NamespacedStore.
	KeyPrefix = "dss"
	// Separator joins KeyPrefix, the namespace and the logical key.
	Separator = "."
)

// Compile-time interface check.
var _ store.IStore = (*NamespacedStore)(nil)

// NamespacedStore confines a store.IStore to one namespace. Every logical key k
// is stored under the physical key "dss." + namespace + "." + k.
//
// A NamespacedStore holds no mutable state and is safe for concurrent use.
// It validates arguments, rewrites keys and delegates each operation as exactly
// one call to the wrapped store. It never retries.
type NamespacedStore struct {
	store     store.IStore
	namespace string
	prefix    string
}

// New creates a NamespacedStore for namespace on top of s.
// It fails with store.RetCInvalidArgument if s is nil or namespace is empty or
// contains the separator.
//
// Rejecting "." in namespaces is stricter than a plain non-empty check on
// purpose. With namespace "a" and "a.b" both allowed, the keys of "a.b" would
// be logical keys "b.<k>" of namespace "a", and GetPrefix or DeletePrefix on
// "a" would reach into "a.b".
func New(s store.IStore, namespace string) (*NamespacedStore, error) {
	if s == nil {
		return nil, store.NewError(store.RetCInvalidArgument, "New: store must not be nil")
	}
	if namespace == "" {
		return nil, store.NewError(store.RetCInvalidArgument, "New: namespace must not be empty")
	}
	if strings.Contains(namespace, Separator) {
		return nil, store.NewError(store.RetCInvalidArgument,
			fmt.Sprintf("New: namespace %q must not contain %q", namespace, Separator))
	}

	return &NamespacedStore{
		store:     s,
		namespace: namespace,
		prefix:    KeyPrefix + Separator + namespace + Separator,
	}, nil
}

// Namespace returns the namespace of the store.
func (n *NamespacedStore) Namespace() string {
	return n.namespace
}

// Prefix returns the prefix of every physical key, "dss." + namespace + ".".
func (n *NamespacedStore) Prefix() string {
	return n.prefix
}

// --------------------------------------------------------------------------
// Key Transformation
// --------------------------------------------------------------------------

func (n *NamespacedStore) prefixKey(key string) string {
	return n.prefix + key
}

// unprefixKey strips the namespace prefix. ok is false if key is outside the namespace.
func (n *NamespacedStore) unprefixKey(key string) (logical string, ok bool) {
	if !strings.HasPrefix(key, n.prefix) {
		return "", false
	}
	return key[len(n.prefix):], true
}

// prefixKeyValues returns a new map with every key prefixed.
// A nil map or an empty key fails before anything is built.
func (n *NamespacedStore) prefixKeyValues(op, name string, keyValues map[string]string) (map[string]string, error) {
	if keyValues == nil {
		return nil, store.NewError(store.RetCInvalidArgument, fmt.Sprintf("%s: %s must not be nil", op, name))
	}
	if err := store.CheckKeyValues(op, keyValues); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(keyValues))
	for k, v := range keyValues {
		out[n.prefixKey(k)] = v
	}
	return out, nil
}

// wrapErr keeps store errors as they are and turns anything else into an internal error.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	return store.WrapError(store.RetCInternalError, op, err)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (n *NamespacedStore) Put(key, value string) error {
	if err := store.CheckKey("Put", key); err != nil {
		return err
	}
	return wrapErr("Put", n.store.Put(n.prefixKey(key), value))
}

func (n *NamespacedStore) PutBatch(keyValues map[string]string) error {
	physical, err := n.prefixKeyValues("PutBatch", "keyValues", keyValues)
	if err != nil {
		return err
	}
	return wrapErr("PutBatch", n.store.PutBatch(physical))
}

func (n *NamespacedStore) PutSwap(key string, oldValue *string, newValue string) (bool, error) {
	if err := store.CheckKey("PutSwap", key); err != nil {
		return false, err
	}
	applied, err := n.store.PutSwap(n.prefixKey(key), oldValue, newValue)
	return applied, wrapErr("PutSwap", err)
}

func (n *NamespacedStore) PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (bool, error) {
	if err := store.CheckKey("PutSwap", key); err != nil {
		return false, err
	}
	physical, err := n.prefixKeyValues("PutSwap", "others", others)
	if err != nil {
		return false, err
	}
	applied, err := n.store.PutSwapWithOthers(n.prefixKey(key), oldValue, newValue, physical)
	return applied, wrapErr("PutSwap", err)
}

func (n *NamespacedStore) Get(key string) (string, bool, error) {
	if err := store.CheckKey("Get", key); err != nil {
		return "", false, err
	}
	value, found, err := n.store.Get(n.prefixKey(key))
	if err != nil {
		return "", false, wrapErr("Get", err)
	}
	return value, found, nil
}

// GetPrefix returns every entry below keyPrefix with the namespace prefix removed.
// The empty keyPrefix returns the whole namespace. If the wrapped store returns
// a key outside the namespace, the call fails with store.RetCIntegrityViolation
// and no entries are returned.
func (n *NamespacedStore) GetPrefix(keyPrefix string) (map[string]string, error) {
	physical, err := n.store.GetPrefix(n.prefixKey(keyPrefix))
	if err != nil {
		return nil, wrapErr("GetPrefix", err)
	}

	out := make(map[string]string, len(physical))
	for k, v := range physical {
		logical, ok := n.unprefixKey(k)
		if !ok {
			integrityViolations(n.namespace).Inc()
			log.Errorf("namespace %s: store returned key %q outside prefix %q", n.namespace, k, n.prefix)
			return nil, store.NewError(store.RetCIntegrityViolation,
				fmt.Sprintf("GetPrefix: store returned key %q outside namespace %q", k, n.namespace))
		}
		out[logical] = v
	}
	return out, nil
}

func (n *NamespacedStore) Delete(key string) error {
	if err := store.CheckKey("Delete", key); err != nil {
		return err
	}
	return wrapErr("Delete", n.store.Delete(n.prefixKey(key)))
}

func (n *NamespacedStore) DeleteBatch(keys []string) error {
	if keys == nil {
		return store.NewError(store.RetCInvalidArgument, "DeleteBatch: keys must not be nil")
	}
	if err := store.CheckKeys("DeleteBatch", keys); err != nil {
		return err
	}

	physical := make([]string, len(keys))
	for i, k := range keys {
		physical[i] = n.prefixKey(k)
	}
	return wrapErr("DeleteBatch", n.store.DeleteBatch(physical))
}

// DeletePrefix deletes every entry below keyPrefix. The empty keyPrefix
// deletes the whole namespace and nothing outside of it.
func (n *NamespacedStore) DeletePrefix(keyPrefix string) error {
	return wrapErr("DeletePrefix", n.store.DeletePrefix(n.prefixKey(keyPrefix)))
}

// GetDBInfo returns the info of the wrapped store. It is not scoped to the namespace.
func (n *NamespacedStore) GetDBInfo() (db.DatabaseInfo, error) {
	info, err := n.store.GetDBInfo()
	return info, wrapErr("GetDBInfo", err)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func integrityViolations(namespace string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dss_integrity_violations_total{namespace=%q}`, namespace))
}
