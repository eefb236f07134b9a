package util

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	in := map[string]string{
		"a":        "1",
		"b":        "",
		"\x00\xff": "binary\x00value",
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, in); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	out := make(map[string]string)
	var order []string
	err := ReadSnapshot(&buf, func(key, value string) error {
		out[key] = value
		order = append(order, key)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(out))
	}
	for k, v := range in {
		if got, ok := out[k]; !ok || got != v {
			t.Errorf("entry %q: expected %q, got %q (found=%v)", k, v, got, ok)
		}
	}
	// entries are written in key order
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("entries not sorted: %q before %q", order[i-1], order[i])
		}
	}
}

func TestSnapshotEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, nil); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	calls := 0
	if err := ReadSnapshot(&buf, func(_, _ string) error { calls++; return nil }); err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no entries, got %d", calls)
	}
}

func TestSnapshotWriterCount(t *testing.T) {
	var buf bytes.Buffer

	sw, err := NewSnapshotWriter(&buf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err == nil {
		t.Error("expected Close to fail with missing entries")
	}

	sw, err = NewSnapshotWriter(&buf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.Write("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := sw.Write("b", "2"); err == nil {
		t.Error("expected Write to fail past the announced count")
	}
}

func TestSnapshotCorrupt(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		err := ReadSnapshot(bytes.NewBufferString("NOTASNAPSHOT-----"), func(_, _ string) error { return nil })
		if err == nil {
			t.Error("expected magic mismatch")
		}
	})

	t.Run("truncated", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteSnapshot(&buf, map[string]string{"key": "value"}); err != nil {
			t.Fatal(err)
		}
		data := buf.Bytes()[:buf.Len()-2]
		err := ReadSnapshot(bytes.NewReader(data), func(_, _ string) error { return nil })
		if err == nil {
			t.Error("expected error for truncated snapshot")
		}
	})

	t.Run("bad version", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteSnapshot(&buf, nil); err != nil {
			t.Fatal(err)
		}
		data := buf.Bytes()
		data[len(snapshotMagic)] = 99
		err := ReadSnapshot(bytes.NewReader(data), func(_, _ string) error { return nil })
		if err == nil {
			t.Error("expected unsupported version")
		}
	})
	t.Run("oversized length", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteSnapshot(&buf, nil); err != nil {
			t.Fatal(err)
		}
		data := buf.Bytes()
		// announce one entry whose key claims 4 GiB
		binary.LittleEndian.PutUint64(data[len(data)-8:], 1)
		data = append(data, 0xff, 0xff, 0xff, 0xff)
		err := ReadSnapshot(bytes.NewReader(data), func(_, _ string) error { return nil })
		if err == nil || !strings.Contains(err.Error(), "exceeds the limit") {
			t.Errorf("expected the length to be rejected, got %v", err)
		}
	})
}
