package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dss/lib/db"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/lib/store/dstore"
	"github.com/ValentinKolb/dss/lib/store/lstore"
	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/serializer"
	"github.com/ValentinKolb/dss/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer routes requests of a transport to the shards it serves.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	mu        sync.Mutex
	nodeHost  *dragonboat.NodeHost
	databases []db.KVDB
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// AddShard registers s under shardID. Shards of the config are added by Serve,
// AddShard serves stores created elsewhere. An existing shard with the same ID is replaced.
func (s *RPCServer) AddShard(shardID uint64, st store.IStore, adapter IRPCServerAdapter) {
	s.shards.Store(shardID, serverShard{
		Store:   st,
		Adapter: adapter,
	})
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until Shutdown is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport, the RAFT node host and closes all local databases.
func (s *RPCServer) Shutdown() error {
	err := s.transport.Shutdown()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	for _, database := range s.databases {
		if cerr := database.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	s.databases = nil

	return err
}

// --------------------------------------------------------------------------
// Request Handling
// --------------------------------------------------------------------------

// handle decodes a request, lets the shard adapter execute it and encodes the response
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	start := time.Now()

	var msg common.Message
	var respMsg *common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		// Case shard does not exist -> error
		respMsg = common.NewErrorResponse(store.RetCUnavailable, fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	observeRequest(msg.MsgType, respMsg.ErrCode, start)

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response to %s: %v", msg.MsgType, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCInternalError,
			fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	// Create the Dragonboat NodeHost
	if s.config.HasRemoteShard() {
		// Only create the NodeHost if we have remote shards
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.mu.Lock()
		s.nodeHost = nodeHost
		s.mu.Unlock()
	}

	// Configure the timeout for the distributed store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	/*
		Note: A single RPC Server can have any number of remote and or local shards.
		Each shard can be a store or a lock manager. Lock managers keep their locks
		in a store of the same kind, so every shard starts with creating its store.
	*/

	for _, shardConfig := range s.config.Shards {
		var adapter IRPCServerAdapter
		if shardConfig.Type.IsLockManager() {
			adapter = NewLockManagerServerAdapter()
		} else {
			adapter = NewIStoreServerAdapter()
		}

		// Case local store or local lock manager
		if !shardConfig.Type.IsRemote() {
			database, err := openEngine(s.config.Engine, s.config.DataDir, shardConfig.ShardID, false)
			if err != nil {
				return fmt.Errorf("failed to open database of shard %d: %w", shardConfig.ShardID, err)
			}
			s.mu.Lock()
			s.databases = append(s.databases, database)
			s.mu.Unlock()

			s.AddShard(shardConfig.ShardID, lstore.NewLocalStore(func() db.KVDB { return database }), adapter)
			Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
			continue
		}

		// Case remote store or remote lock manager
		if s.nodeHost == nil {
			return fmt.Errorf("node host is nil, cannot create remote store")
		}

		// The RAFT log restores the state, so replicas start from an empty database
		shardID := shardConfig.ShardID
		dbFactory := func() db.KVDB {
			database, err := openEngine(s.config.Engine, s.config.DataDir, shardID, true)
			if err != nil {
				Logger.Panicf("failed to open database of shard %d: %v", shardID, err)
			}
			return database
		}

		if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false,
			dstore.CreateStateMachineFactory(dbFactory), s.config.ToDragonboatConfig(shardID)); err != nil {
			return fmt.Errorf("failed to start shard %d: %w", shardID, err)
		}

		s.AddShard(shardID, dstore.NewDistributedStore(s.nodeHost, shardID, timeout), adapter)
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardID)
	}

	Logger.Infof("dss setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func observeRequest(msgType common.MessageType, code store.RetCode, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dss_rpc_requests_total{type=%q,code=%q}`, msgType, code)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dss_rpc_request_duration_seconds{type=%q}`, msgType)).UpdateDuration(start)
}
