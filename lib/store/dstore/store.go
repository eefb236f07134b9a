package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result data of the applied entry or a *store.Error.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	data := cmd.Serialize()

	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, s.proposeError(cmd.Type.String(), err)
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCUnavailable, fmt.Sprintf("%s: system busy after %d retries", cmd.Type, retries))
}

// proposeError maps dragonboat errors to store errors.
func (s *storeImpl) proposeError(op string, err error) error {
	switch {
	case errors.Is(err, dragonboat.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, dragonboat.ErrShardNotReady),
		errors.Is(err, dragonboat.ErrShardNotFound),
		errors.Is(err, dragonboat.ErrClosed):
		return store.WrapError(store.RetCUnavailable, op, err)
	default:
		return store.WrapError(store.RetCInternalError, op, err)
	}
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			// errors raised by Lookup are passed through
			var se *store.Error
			if errors.As(err, &se) {
				return zero, se
			}
			return zero, r.proposeError(q.Type.String(), err)
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCUnavailable, fmt.Sprintf("%s: system busy after %d retries", q.Type, retries))
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key, value string) error {
	if err := store.CheckKey("Put", key); err != nil {
		return err
	}
	_, err := s.write(internal.Command{
		Type:  internal.CommandTPut,
		Key:   key,
		Value: value,
	})
	return err
}

func (s *storeImpl) PutBatch(keyValues map[string]string) error {
	if err := store.CheckKeyValues("PutBatch", keyValues); err != nil {
		return err
	}
	if len(keyValues) == 0 {
		return nil
	}
	_, err := s.write(internal.Command{
		Type:      internal.CommandTPutBatch,
		KeyValues: keyValues,
	})
	return err
}

func (s *storeImpl) PutSwap(key string, oldValue *string, newValue string) (bool, error) {
	return s.PutSwapWithOthers(key, oldValue, newValue, nil)
}

func (s *storeImpl) PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (bool, error) {
	if err := store.CheckKey("PutSwap", key); err != nil {
		return false, err
	}
	if err := store.CheckKeyValues("PutSwap", others); err != nil {
		return false, err
	}

	cmd := internal.Command{
		Type:      internal.CommandTPutSwap,
		Key:       key,
		Value:     newValue,
		KeyValues: others,
	}
	if oldValue != nil {
		cmd.HasOld = true
		cmd.OldValue = *oldValue
	}

	data, err := s.write(cmd)
	if err != nil {
		return false, err
	}
	if len(data) != 1 {
		return false, store.NewError(store.RetCInternalError, "malformed PutSwap result")
	}
	return data[0] == swapApplied, nil
}

func (s *storeImpl) Get(key string) (string, bool, error) {
	if err := store.CheckKey("Get", key); err != nil {
		return "", false, err
	}
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return "", false, err
	}
	return res.Value, res.Ok, nil
}

func (s *storeImpl) GetPrefix(keyPrefix string) (map[string]string, error) {
	return read[map[string]string](s, internal.Query{
		Type: internal.QueryTGetPrefix,
		Key:  keyPrefix,
	}, false)
}

func (s *storeImpl) Delete(key string) error {
	if err := store.CheckKey("Delete", key); err != nil {
		return err
	}
	_, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	return err
}

func (s *storeImpl) DeleteBatch(keys []string) error {
	if err := store.CheckKeys("DeleteBatch", keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := s.write(internal.Command{
		Type: internal.CommandTDeleteBatch,
		Keys: keys,
	})
	return err
}

func (s *storeImpl) DeletePrefix(keyPrefix string) error {
	_, err := s.write(internal.Command{
		Type: internal.CommandTDeletePrefix,
		Key:  keyPrefix,
	})
	return err
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
