package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// Result data of an applied or rejected swap (sm.Result.Data)
const (
	swapRejected byte = 0
	swapApplied  byte = 1
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// KVStateMachine is a state machine implementation for Dragonboat RAFT
type KVStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.KVDB // the actual dataStorage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &KVStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding KVDB method.
func (fsm *KVStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	// Handle different Query types
	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		val, ok, err := fsm.database.Get(q.Key)
		if err != nil {
			return nil, store.WrapError(store.RetCInternalError, "Get failed", err)
		}
		return internal.QueryResult{
			Value: val,
			Ok:    ok,
		}, nil
	case internal.QueryTGetPrefix:
		if !fsm.database.SupportsFeature(db.FeatureGetPrefix) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "GetPrefix operation is not supported")
		}
		kvs, err := fsm.database.GetPrefix(q.Key)
		if err != nil {
			return nil, store.WrapError(store.RetCInternalError, "GetPrefix failed", err)
		}
		return kvs, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the KVDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e.Cmd)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("state machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single raft log entry. Failures are reported in the result,
// never as an error, since a failing entry must not stop the replica.
func (fsm *KVStateMachine) apply(data []byte) sm.Result {
	if len(data) == 0 {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(data); err != nil {
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("failed to deserialize command: %v", err)),
		}
	}

	txn, err := cmd.ToTxn()
	if err != nil {
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
		}
	}

	// Check if the db supports the operation
	if !fsm.database.SupportsFeature(txn.Features()) {
		return sm.Result{
			Value: uint64(store.RetCUnsupportedOperation),
			Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
		}
	}

	applied, err := fsm.database.Apply(txn)
	if err != nil {
		log.Errorf("[shard %d] %s failed: %v", fsm.shardID, cmd.Type, err)
		return sm.Result{
			Value: uint64(store.RetCInternalError),
			Data:  []byte(fmt.Sprintf("%s failed: %v", cmd.Type, err)),
		}
	}

	if cmd.Type == internal.CommandTPutSwap {
		flag := swapRejected
		if applied {
			flag = swapApplied
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{flag}}
	}
	return sm.Result{Value: uint64(store.RetCSuccess)}
}

// PrepareSnapshot captures the database at the applied index. Dragonboat calls
// it between two Update calls and replays every later entry on top of the
// saved state, so the snapshot must not contain any of them.
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return nil, fmt.Errorf("the used KVDB implementation does not support Save() operations")
	}
	return fsm.database.Snapshot()
}

// SaveSnapshot writes the state captured by PrepareSnapshot and releases it.
func (fsm *KVStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	snap, ok := ctx.(db.Snapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot context: %T", ctx)
	}
	defer snap.Close()
	return snap.Save(writer)
}

// RecoverFromSnapshot replaces the database with the snapshot.
func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used KVDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *KVStateMachine) Close() error {
	return fsm.database.Close()
}
