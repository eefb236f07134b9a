package unix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/transport/internal/transporttest"
)

// socketPath returns a short socket path, t.TempDir can be too long for a socket
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dss")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "rpc.sock")
}

func TestUnixTransport(t *testing.T) {
	socket := socketPath(t)

	serverConfig := common.ServerConfig{
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 4},
	}
	clientConfig := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{socket}},
	}

	transporttest.RunTransportTests(t, NewUnixServerTransport(), NewUnixClientTransport(), serverConfig, clientConfig)
}

func TestLateAnswerIsNotRetried(t *testing.T) {
	socket := socketPath(t)

	serverConfig := common.ServerConfig{
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: socket},
	}
	clientConfig := common.ClientConfig{
		TimeoutSecond: 1,
		Transport:     common.ClientTransportConfig{Endpoints: []string{socket}, RetryCount: 3},
	}

	transporttest.RunUnansweredRequestTests(t, NewUnixServerTransport(), NewUnixClientTransport(), serverConfig, clientConfig)
}
