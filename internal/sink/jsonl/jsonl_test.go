package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mehmetymw/tap-libsql/internal/types"
)

func TestMessageStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := New(path, zap.NewNop())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	schema := &types.Schema{
		Columns: []string{"id", types.ExtractedAtColumn},
		Properties: map[string]types.Property{
			"id":                    {Type: types.TypeInteger, Required: true},
			types.ExtractedAtColumn: {Type: types.TypeDatetime, Required: true},
		},
	}
	if err := sink.WriteSchema("users", schema, []string{"id"}, "updated_at"); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := sink.WriteRecord("users", types.Record{"id": 1}); err != nil {
		t.Fatalf("write record: %v", err)
	}
	if err := sink.WriteState(map[string]any{"users": "2025-01-03 12:00:00"}); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var msgs []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		msgs = append(msgs, m)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	if msgs[0]["type"] != "SCHEMA" || msgs[0]["stream"] != "users" {
		t.Fatalf("first message = %v", msgs[0])
	}
	if msgs[0]["replication_key"] != "updated_at" {
		t.Fatalf("schema replication_key = %v", msgs[0]["replication_key"])
	}
	if msgs[1]["type"] != "RECORD" {
		t.Fatalf("second message = %v", msgs[1])
	}
	rec := msgs[1]["record"].(map[string]any)
	if rec["id"] != float64(1) {
		t.Fatalf("record id = %v", rec["id"])
	}
	if msgs[2]["type"] != "STATE" {
		t.Fatalf("third message = %v", msgs[2])
	}
	state := msgs[2]["value"].(map[string]any)
	if state["users"] != "2025-01-03 12:00:00" {
		t.Fatalf("state = %v", state)
	}
}

func TestStdoutSink(t *testing.T) {
	sink, err := New("", zap.NewNop())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	// Closing the stdout-backed sink must not close stdout.
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
