package server

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/db/engines/memory"
	"github.com/ValentinKolb/dss/lib/lockmgr"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/lib/store/lstore"
	storetesting "github.com/ValentinKolb/dss/lib/store/testing"
	"github.com/ValentinKolb/dss/rpc/client"
	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/serializer"
	"github.com/ValentinKolb/dss/rpc/transport/unix"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newMemoryStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return memory.NewMemoryDB(nil) })
}

// startServer serves config over a unix socket and returns the matching client config.
// setup runs before the server starts.
func startServer(t *testing.T, config common.ServerConfig, setup func(s *RPCServer)) common.ClientConfig {
	t.Helper()

	// socket paths are limited in length, t.TempDir can be too long
	dir, err := os.MkdirTemp("", "dss")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "rpc.sock")

	config.TimeoutSecond = 5
	config.LogLevel = "error"
	config.Transport.Endpoint = socket

	s := NewRPCServer(config, unix.NewUnixServerTransport(), serializer.NewBinarySerializer())
	if setup != nil {
		setup(s)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		if err := s.Shutdown(); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned an error after shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after shutdown")
		}
	})

	clientConfig := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{socket}, RetryCount: 1},
	}

	// wait for the server to come up
	probe := unix.NewUnixClientTransport()
	for i := 0; i < 100; i++ {
		if err = probe.Connect(clientConfig); err == nil {
			break
		}
		select {
		case err := <-done:
			t.Fatalf("Serve failed: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}
	probe.Close()
	if err != nil {
		t.Fatalf("server did not come up: %v", err)
	}
	return clientConfig
}

func newClientStore(t *testing.T, config common.ClientConfig, shardID uint64, namespace string) store.IStore {
	t.Helper()
	s, err := client.NewRPCStore(shardID, namespace, config, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("Failed to create client store: %v", err)
	}
	t.Cleanup(func() { s.(io.Closer).Close() })
	return s
}

func newClientLockMgr(t *testing.T, config common.ClientConfig, shardID uint64, namespace string) lockmgr.ILockManager {
	t.Helper()
	l, err := client.NewRPCLockMgr(shardID, namespace, config, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("Failed to create client lock manager: %v", err)
	}
	t.Cleanup(func() { l.(io.Closer).Close() })
	return l
}

// leakyStore returns a foreign key from every prefix read.
type leakyStore struct {
	store.IStore
}

func (l leakyStore) GetPrefix(keyPrefix string) (map[string]string, error) {
	kvs, err := l.IStore.GetPrefix(keyPrefix)
	if err != nil {
		return nil, err
	}
	kvs["foreign"] = "x"
	return kvs, nil
}

// slowSwapStore applies the first swap and then stalls past the client timeout.
type slowSwapStore struct {
	store.IStore
	delay time.Duration
	calls atomic.Int32
}

func (s *slowSwapStore) PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (bool, error) {
	applied, err := s.IStore.PutSwapWithOthers(key, oldValue, newValue, others)
	if s.calls.Add(1) == 1 {
		time.Sleep(s.delay)
	}
	return applied, err
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRPCStore(t *testing.T) {
	var server *RPCServer
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) { server = s })

	// every store of the suite gets its own shard
	var nextShard atomic.Uint64
	factory := func(namespace string) storetesting.StoreFactory {
		return func() store.IStore {
			shardID := nextShard.Add(1)
			server.AddShard(shardID, newMemoryStore(), NewIStoreServerAdapter())
			return newClientStore(t, config, shardID, namespace)
		}
	}

	storetesting.RunIStoreTests(t, "Raw", factory(""))
	storetesting.RunIStoreTests(t, "Namespaced", factory("team"))
}

func TestNamespaceIsolation(t *testing.T) {
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) {
		s.AddShard(1, newMemoryStore(), NewIStoreServerAdapter())
	})

	a := newClientStore(t, config, 1, "a")
	b := newClientStore(t, config, 1, "b")
	raw := newClientStore(t, config, 1, "")

	if err := a.Put("x", "1"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := b.Put("y", "2"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, found, _ := b.Get("x"); found {
		t.Error("Expected x to be invisible in namespace b")
	}
	if v, found, err := raw.Get("dss.a.x"); err != nil || !found || v != "1" {
		t.Errorf("Expected physical key dss.a.x = 1, got %q, %v, %v", v, found, err)
	}

	if err := a.DeletePrefix(""); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	kvs, err := b.GetPrefix("")
	if err != nil {
		t.Fatalf("GetPrefix failed: %v", err)
	}
	if len(kvs) != 1 || kvs["y"] != "2" {
		t.Errorf("Expected namespace b to keep y, got %v", kvs)
	}
}

func TestIntegrityViolationOverRPC(t *testing.T) {
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) {
		s.AddShard(1, leakyStore{newMemoryStore()}, NewIStoreServerAdapter())
	})

	ns := newClientStore(t, config, 1, "runs")
	if err := ns.Put("run-1", "ok"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, err := ns.GetPrefix("")
	if !errors.Is(err, store.ErrIntegrityViolation) {
		t.Fatalf("Expected IntegrityViolation, got %v", err)
	}
}

func TestNilContainers(t *testing.T) {
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) {
		s.AddShard(1, newMemoryStore(), NewIStoreServerAdapter())
	})

	ns := newClientStore(t, config, 1, "runs")
	raw := newClientStore(t, config, 1, "")

	if err := ns.PutBatch(nil); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for nil batch, got %v", err)
	}
	if err := ns.DeleteBatch(nil); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for nil keys, got %v", err)
	}
	if _, err := ns.PutSwapWithOthers("k", nil, "v", nil); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for nil others, got %v", err)
	}

	// the raw store treats nil like empty
	if err := raw.PutBatch(nil); err != nil {
		t.Errorf("Unexpected error for nil batch on raw store: %v", err)
	}
	if err := raw.DeleteBatch(nil); err != nil {
		t.Errorf("Unexpected error for nil keys on raw store: %v", err)
	}
}

func TestInvalidNamespace(t *testing.T) {
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) {
		s.AddShard(1, newMemoryStore(), NewIStoreServerAdapter())
	})

	ns := newClientStore(t, config, 1, "a.b")
	if err := ns.Put("k", "v"); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for namespace with separator, got %v", err)
	}
}

func TestUnknownShard(t *testing.T) {
	config := startServer(t, common.ServerConfig{}, nil)

	s := newClientStore(t, config, 999, "")
	if _, _, err := s.Get("k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected Unavailable for unknown shard, got %v", err)
	}
}

func TestLockManagerOverRPC(t *testing.T) {
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) {
		s.AddShard(1, newMemoryStore(), NewLockManagerServerAdapter())
	})

	teamA := newClientLockMgr(t, config, 1, "team-a")
	teamB := newClientLockMgr(t, config, 1, "team-b")

	ok, owner, err := teamA.AcquireLock("printer")
	if err != nil || !ok || owner == "" {
		t.Fatalf("Expected to acquire the lock, got %v, %q, %v", ok, owner, err)
	}
	if ok, _, err := teamA.AcquireLock("printer"); err != nil || ok {
		t.Errorf("Expected second acquire to fail, got %v, %v", ok, err)
	}

	// other namespace, other lock
	if ok, _, err := teamB.AcquireLock("printer"); err != nil || !ok {
		t.Errorf("Expected acquire in other namespace to succeed, got %v, %v", ok, err)
	}

	if ok, err := teamA.ReleaseLock("printer", "someone-else"); err != nil || ok {
		t.Errorf("Expected release with foreign owner to fail, got %v, %v", ok, err)
	}
	if ok, err := teamA.ReleaseLock("printer", owner); err != nil || !ok {
		t.Errorf("Expected release by owner to succeed, got %v, %v", ok, err)
	}
	if ok, _, err := teamA.AcquireLock("printer"); err != nil || !ok {
		t.Errorf("Expected acquire after release to succeed, got %v, %v", ok, err)
	}
}

func TestServeConfiguredShards(t *testing.T) {
	config := startServer(t, common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeLocalIStore},
			{ShardID: 2, Type: common.ShardTypeLocalILockManager},
		},
		Engine:  "bolt",
		DataDir: t.TempDir(),
	}, nil)

	s := newClientStore(t, config, 1, "runs")
	if err := s.Put("run-1", "started"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, found, err := s.Get("run-1"); err != nil || !found || v != "started" {
		t.Errorf("Expected started, got %q, %v, %v", v, found, err)
	}

	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.DbType != db.ImplBolt {
		t.Errorf("Expected bolt engine, got %q", info.DbType)
	}

	locks := newClientLockMgr(t, config, 2, "")
	if ok, _, err := locks.AcquireLock("printer"); err != nil || !ok {
		t.Errorf("Expected to acquire the lock, got %v, %v", ok, err)
	}
}

func TestHandleErrors(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	s := NewRPCServer(common.ServerConfig{}, unix.NewUnixServerTransport(), ser)
	s.AddShard(1, newMemoryStore(), NewIStoreServerAdapter())

	decode := func(data []byte) common.Message {
		t.Helper()
		var msg common.Message
		if err := ser.Deserialize(data, &msg); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return msg
	}

	// undecodable request
	resp := decode(s.handle(1, []byte{1}))
	if resp.MsgType != common.MsgTError || resp.ErrCode != store.RetCInvalidOperation {
		t.Errorf("Expected InvalidOperation error, got %+v", resp)
	}

	// lock request on a store shard
	req, _ := ser.Serialize(*common.NewAcquireRequest("", "k"))
	resp = decode(s.handle(1, req))
	if resp.MsgType != common.MsgTError || resp.ErrCode != store.RetCInvalidOperation {
		t.Errorf("Expected InvalidOperation error, got %+v", resp)
	}

	// missing shard
	req, _ = ser.Serialize(*common.NewGetRequest("", "k"))
	resp = decode(s.handle(7, req))
	if resp.ErrCode != store.RetCUnavailable {
		t.Errorf("Expected Unavailable error, got %+v", resp)
	}
}

func TestOpenEngine(t *testing.T) {
	dir := t.TempDir()

	for _, engine := range []string{"", "memory", "pebble", "bolt"} {
		database, err := openEngine(engine, dir, 3, true)
		if err != nil {
			t.Fatalf("openEngine(%q) failed: %v", engine, err)
		}
		if err := database.Close(); err != nil {
			t.Errorf("Close of %q failed: %v", engine, err)
		}
	}

	if _, err := openEngine("pebble", "", 3, false); err == nil {
		t.Error("Expected an error for pebble without data directory")
	}
	if _, err := openEngine("leveldb", dir, 3, false); err == nil {
		t.Error("Expected an error for an unknown engine")
	}
}

func TestLateSwapAnswerIsNotRetried(t *testing.T) {
	slow := &slowSwapStore{IStore: newMemoryStore(), delay: 1500 * time.Millisecond}
	config := startServer(t, common.ServerConfig{}, func(s *RPCServer) {
		s.AddShard(1, slow, NewIStoreServerAdapter())
	})
	config.TimeoutSecond = 1
	config.Transport.RetryCount = 3
	st := newClientStore(t, config, 1, "jobs")

	applied, err := st.PutSwapWithOthers("owner", nil, "me", map[string]string{"since": "now"})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected Unavailable for an unanswered swap, got applied=%v err=%v", applied, err)
	}

	// wait for the stalled call, a retry would have reached the store by then
	time.Sleep(slow.delay)
	if n := slow.calls.Load(); n != 1 {
		t.Errorf("expected the swap to reach the store once, got %d calls", n)
	}

	// the swap was applied on the server, the caller finds out by reading
	config.TimeoutSecond = 5
	reader := newClientStore(t, config, 1, "jobs")
	if v, found, err := reader.Get("owner"); err != nil || !found || v != "me" {
		t.Errorf("expected owner=me, got %q, %v, %v", v, found, err)
	}
	if v, found, err := reader.Get("since"); err != nil || !found || v != "now" {
		t.Errorf("expected since=now, got %q, %v, %v", v, found, err)
	}
}
