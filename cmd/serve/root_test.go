package serve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dss/lib/db/util"
	"github.com/ValentinKolb/dss/rpc/common"
)

func TestParseShards(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []common.ServerShard
		wantErr bool
	}{
		{
			name:  "default layout",
			input: "100=lstore,200=lockmgr",
			want: []common.ServerShard{
				{ShardID: 100, Type: common.ShardTypeLocalIStore},
				{ShardID: 200, Type: common.ShardTypeLocalILockManager},
			},
		},
		{
			name:  "remote shards with spaces",
			input: " 1 = dstore , 2=dlockmgr ",
			want: []common.ServerShard{
				{ShardID: 1, Type: common.ShardTypeRemoteIStore},
				{ShardID: 2, Type: common.ShardTypeRemoteILockManager},
			},
		},
		{name: "missing type", input: "100", wantErr: true},
		{name: "invalid id", input: "abc=lstore", wantErr: true},
		{name: "invalid type", input: "100=redis", wantErr: true},
		{name: "duplicate id", input: "1=lstore,1=lockmgr", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseShards(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Shard %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLoadShardsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shards.toml")
	content := `
[[shard]]
id = 100
type = "lstore"

[[shard]]
id = 200
type = "DLOCKMGR"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	shards, err := loadShardsFile(path)
	if err != nil {
		t.Fatalf("loadShardsFile failed: %v", err)
	}
	want := []common.ServerShard{
		{ShardID: 100, Type: common.ShardTypeLocalIStore},
		{ShardID: 200, Type: common.ShardTypeRemoteILockManager},
	}
	if len(shards) != len(want) || shards[0] != want[0] || shards[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, shards)
	}
}

func TestLoadShardsFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := loadShardsFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Expected an error for a missing file")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(invalid, []byte("[[shard]]\nid = 1\ntype = \"redis\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadShardsFile(invalid); err == nil {
		t.Error("Expected an error for an invalid shard type")
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := parseClusterMembers("node-1=localhost:63001,node-2=localhost:63002")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := members[uint64(util.HashString("node-2", 0))]; got != "localhost:63002" {
		t.Errorf("Expected localhost:63002 for node-2, got %q", got)
	}
	if len(members) != 2 {
		t.Errorf("Expected 2 members, got %d", len(members))
	}

	if _, err := parseClusterMembers("node-1"); err == nil {
		t.Error("Expected an error for a member without address")
	}
}
