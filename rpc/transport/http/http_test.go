package http

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dss/rpc/common"
	"github.com/ValentinKolb/dss/rpc/transport"
	"github.com/ValentinKolb/dss/rpc/transport/internal/transporttest"
	"github.com/VictoriaMetrics/metrics"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestHTTPTransport(t *testing.T) {
	addr := freeAddr(t)

	serverConfig := common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: addr},
		LogLevel:  "debug",
	}
	clientConfig := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{"http://" + addr},
			RetryCount: 2,
		},
	}

	transporttest.RunTransportTests(t, NewHttpServerTransport(), NewHttpClientTransport(), serverConfig, clientConfig)
}

func TestLateAnswerIsNotRetried(t *testing.T) {
	addr := freeAddr(t)

	serverConfig := common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: addr},
	}
	clientConfig := common.ClientConfig{
		TimeoutSecond: 1,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{"http://" + addr},
			RetryCount: 3,
		},
	}

	transporttest.RunUnansweredRequestTests(t, NewHttpServerTransport(), NewHttpClientTransport(), serverConfig, clientConfig)
}

func TestUnreachableEndpointIsNotSent(t *testing.T) {
	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 1,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{"http://" + freeAddr(t)},
			RetryCount: 2,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Send(1, []byte("x")); !errors.Is(err, transport.ErrNotSent) {
		t.Errorf("expected ErrNotSent, got %v", err)
	}
}

func TestRoutes(t *testing.T) {
	metrics.GetOrCreateCounter(`dss_http_transport_test_total`).Inc()

	st := &httpServerTransport{
		handler: func(shardId uint64, req []byte) []byte { return req },
	}
	srv := httptest.NewServer(st.routes())
	defer srv.Close()

	t.Run("InvalidShard", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/abc", "application/octet-stream", strings.NewReader("x"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(string(body), "dss_http_transport_test_total 1") {
			t.Errorf("expected the test counter in the metrics output")
		}
	})
}

func TestConnectInvalidEndpoint(t *testing.T) {
	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{"localhost"}}}); err == nil {
		t.Error("expected an error for an endpoint without scheme")
	}
	if _, err := client.Send(1, nil); err == nil {
		t.Error("expected an error when sending without a connection")
	}
}
