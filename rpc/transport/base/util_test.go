package base

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		data []byte
	}{
		{"empty payload", nil, []byte{}},
		{"buffer large enough", make([]byte, 1024), []byte("hello")},
		{"buffer too small", make([]byte, frameHeaderSize), bytes.Repeat([]byte("x"), 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go func() {
				if err := writeFrame(client, 7, 42, tt.data); err != nil {
					t.Errorf("writeFrame failed: %v", err)
				}
			}()

			shardID, requestID, data, err := readFrame(server, tt.buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if shardID != 7 || requestID != 42 {
				t.Errorf("expected shard 7 and request 42, got %d and %d", shardID, requestID)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("payload mismatch: got %d bytes, expected %d", len(data), len(tt.data))
			}
		})
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := make([]byte, frameHeaderSize)
		header[16], header[17], header[18], header[19] = 0xff, 0xff, 0xff, 0xff
		client.Write(header)
	}()

	if _, _, _, err := readFrame(server, nil); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}
