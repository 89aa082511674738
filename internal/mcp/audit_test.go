package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/tensionflow/internal/tension"
)

func readAuditEntries(t *testing.T, dir string) []AuditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit entry %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger returned error: %v", err)
	}
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "tension_flow", DurationMs: 42, Status: "success"})
	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "tension_graph", Status: "error", Error: "boom"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readAuditEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Tool != "tension_flow" || entries[0].DurationMs != 42 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Errorf("second entry = %+v", entries[1])
	}

	info, err := os.Stat(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	logger := NewAuditLogger(t.TempDir())
	logger.Close()
	logger.Log(AuditEntry{Tool: "late"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "tension_propagate", Status: "success"})
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readAuditEntries(t, dir)); got != 50 {
		t.Errorf("got %d entries, want 50", got)
	}
}

func TestAuditLogger_NonFatalOnBadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if logger := NewAuditLogger(file); logger != nil {
		t.Error("expected nil logger when data dir is a file")
	}
}

func TestSanitizeToolParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		want   map[string]string
	}{
		{
			name:   "nil",
			params: nil,
			want:   nil,
		},
		{
			name: "scalars by value",
			params: map[string]interface{}{
				"format":  "dot",
				"damping": ptr(0.5),
				"steps":   ptr(3),
			},
			want: map[string]string{"format": "dot", "damping": "0.5", "steps": "3", "_param_count": "3"},
		},
		{
			name: "tables by size",
			params: map[string]interface{}{
				"values":      tension.Values{"A": 1, "B": 2},
				"connections": tension.Connections{"A": {"B": 1}},
				"adjacency":   map[string][]string{},
			},
			want: map[string]string{"values": "2 entries", "connections": "1 entries", "_param_count": "2"},
		},
		{
			name: "text by presence",
			params: map[string]interface{}{
				"network": "secret-name",
				"text":    "(A) -[r]-> (B)",
				"subject": "",
			},
			want: map[string]string{"network": "(set)", "text": "(set)", "_param_count": "2"},
		},
		{
			name: "unset pointers skipped",
			params: map[string]interface{}{
				"damping": (*float64)(nil),
				"steps":   (*int)(nil),
			},
			want: map[string]string{"_param_count": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeToolParams(tt.params)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("sanitizeToolParams mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAuditTool_Integration(t *testing.T) {
	server, dataDir := setupTestServer(t)

	_, _, err := server.handleFlow(context.Background(), &sdk.CallToolRequest{}, FlowInput{
		Values:    tension.Values{"a": 1, "b": 2},
		Adjacency: map[string][]string{"a": {"b"}},
	})
	if err != nil {
		t.Fatalf("handleFlow failed: %v", err)
	}
	_, _, err = server.handleFlow(context.Background(), &sdk.CallToolRequest{}, FlowInput{Iterations: -2})
	if err == nil {
		t.Fatal("expected error for negative iterations")
	}
	server.Close()

	entries := readAuditEntries(t, dataDir)
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}

	first := entries[0]
	if first.Tool != "tension_flow" || first.Status != "success" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Params["values"] != "2 entries" {
		t.Errorf("values param = %q, want size only", first.Params["values"])
	}
	if entries[1].Status != "error" || entries[1].Params["iterations"] != "-2" {
		t.Errorf("second entry = %+v", entries[1])
	}
}
