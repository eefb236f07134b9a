// Package transporttest holds a conformance test shared by the transport implementations.
package transporttest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/transport"
)

// echoHandler answers every request with "<shardId>:<request>"
func echoHandler(shardId uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
}

// serve starts server, waits until client can reach it and stops both when the test ends.
func serve(t *testing.T, server transport.IRPCServerTransport, client transport.IRPCClientTransport,
	serverConfig common.ServerConfig, clientConfig common.ClientConfig) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- server.Listen(serverConfig) }()
	t.Cleanup(func() {
		if err := server.Shutdown(); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Listen returned an error after shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Listen did not return after shutdown")
		}
	})

	// wait for the server to come up
	var err error
	for i := 0; i < 100; i++ {
		if err = client.Connect(clientConfig); err == nil {
			if _, err = client.Send(0, []byte("ping")); err == nil {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Cleanup(func() { client.Close() })
	if err != nil {
		t.Fatalf("server did not come up: %v", err)
	}
}

// RunTransportTests starts server with an echo handler, connects client and checks request routing.
// The server is shut down when the test ends.
func RunTransportTests(t *testing.T, server transport.IRPCServerTransport, client transport.IRPCClientTransport,
	serverConfig common.ServerConfig, clientConfig common.ClientConfig) {
	t.Helper()

	server.RegisterHandler(echoHandler)
	serve(t, server, client, serverConfig, clientConfig)

	t.Run("Send", func(t *testing.T) {
		resp, err := client.Send(3, []byte("hello"))
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if string(resp) != "3:hello" {
			t.Errorf("expected 3:hello, got %q", resp)
		}
	})

	t.Run("EmptyRequest", func(t *testing.T) {
		resp, err := client.Send(1, []byte{})
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if string(resp) != "1:" {
			t.Errorf("expected 1:, got %q", resp)
		}
	})

	t.Run("LargeRequest", func(t *testing.T) {
		req := bytes.Repeat([]byte("x"), 1<<20)
		resp, err := client.Send(2, req)
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if !bytes.Equal(resp, append([]byte("2:"), req...)) {
			t.Errorf("unexpected response of %d bytes", len(resp))
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		const workers = 16
		const requests = 50

		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func(w int) {
				defer wg.Done()
				for i := 0; i < requests; i++ {
					req := fmt.Sprintf("w%d-r%d", w, i)
					resp, err := client.Send(uint64(w), []byte(req))
					if err != nil {
						t.Errorf("Send failed: %v", err)
						return
					}
					if want := fmt.Sprintf("%d:%s", w, req); string(resp) != want {
						t.Errorf("expected %q, got %q", want, resp)
						return
					}
				}
			}(w)
		}
		wg.Wait()
	})
}

// RunUnansweredRequestTests checks that a request which reached the server is
// not sent again when its answer is late. The handler answers "slow" requests
// only after the client timeout, the client must fail with ErrNoResponse and the
// handler must have run once. clientConfig needs a TimeoutSecond of 1 and a
// RetryCount above 1.
func RunUnansweredRequestTests(t *testing.T, server transport.IRPCServerTransport, client transport.IRPCClientTransport,
	serverConfig common.ServerConfig, clientConfig common.ClientConfig) {
	t.Helper()

	var calls atomic.Int32
	finished := make(chan struct{}, 4)
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		if string(req) != "slow" {
			return echoHandler(shardId, req)
		}
		calls.Add(1)
		time.Sleep(time.Duration(clientConfig.TimeoutSecond)*time.Second + 500*time.Millisecond)
		finished <- struct{}{}
		return echoHandler(shardId, req)
	})
	serve(t, server, client, serverConfig, clientConfig)

	_, err := client.Send(7, []byte("slow"))
	if !errors.Is(err, transport.ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}

	// a retry would have reached the handler before the first call finished
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish")
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected the handler to run once, ran %d times", n)
	}

	// the transport stays usable
	resp, err := client.Send(1, []byte("after"))
	if err != nil {
		t.Fatalf("Send after the timeout failed: %v", err)
	}
	if string(resp) != "1:after" {
		t.Errorf("expected 1:after, got %q", resp)
	}
}
