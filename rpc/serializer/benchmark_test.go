package serializer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ValentinKolb/dss/lib/store"
	"github.com/ValentinKolb/dss/rpc/common"
)

// benchmarkMessages are shaped like the traffic of status consumers:
// heartbeats, lock handoffs, allocation batches and prefix scans.
func benchmarkMessages() map[string]common.Message {
	allocations := make(map[string]string, 100)
	for i := 0; i < 100; i++ {
		allocations[fmt.Sprintf("U%03d.status", i)] = "allocated"
	}

	lockOwner := "4b0b3c9e-6a3e-4b8e-9d55-0f8a2f0c7e11"

	return map[string]common.Message{
		"Ack": {
			MsgType: common.MsgTKVPut,
		},
		"Heartbeat": {
			MsgType:   common.MsgTKVPut,
			Namespace: "workers",
			Key:       "worker-17.heartbeat",
			Value:     "2026-10-19T12:00:00Z",
		},
		"LockHandoff": {
			MsgType:   common.MsgTKVPutSwap,
			Namespace: "locks",
			Key:       "printer",
			OldValue:  lockOwner,
			HasOld:    true,
			Value:     "",
			KeyValues: map[string]string{"printer.released-by": lockOwner},
		},
		"Allocations100": {
			MsgType:   common.MsgTKVPutBatch,
			Namespace: "runs",
			KeyValues: allocations,
		},
		"ScanResult100": {
			MsgType:   common.MsgTKVGetPrefix,
			KeyValues: allocations,
		},
		"RunLog16KB": {
			MsgType:   common.MsgTKVPut,
			Namespace: "runs",
			Key:       "run-1.log",
			Value:     strings.Repeat("x", 16*1024),
		},
		"IntegrityError": {
			MsgType: common.MsgTKVGetPrefix,
			Err:     `GetPrefix: key "foreign" is outside of namespace runs`,
			ErrCode: store.RetCIntegrityViolation,
		},
	}
}

// BenchmarkSerialize measures encoding and reports the encoded size per message
func BenchmarkSerialize(b *testing.B) {
	for name, factory := range testSerializers {
		for msgName, msg := range benchmarkMessages() {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes")
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize measures decoding of pre-encoded messages
func BenchmarkDeserialize(b *testing.B) {
	for name, factory := range testSerializers {
		for msgName, msg := range benchmarkMessages() {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var out common.Message
					if err := serializer.Deserialize(data, &out); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
