package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/tensionflow/internal/tension"
)

// AuditFileName is the audit log written inside the data directory.
const AuditFileName = "audit.jsonl"

// AuditEntry records one MCP tool invocation. It carries metadata about the
// call, never node values or identifiers.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends audit entries to a JSONL file. It is safe for
// concurrent use, and a nil AuditLogger is a no-op.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens dataDir/audit.jsonl for appending. Failure is not
// fatal: a warning goes to stderr and nil is returned.
func NewAuditLogger(dataDir string) *AuditLogger {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dataDir, err)
		return nil
	}

	path := filepath.Join(dataDir, AuditFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}

	return &AuditLogger{file: f}
}

// Log appends entry as one JSON line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(data)
}

// Close closes the audit file. Closing twice is safe.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// sanitizeToolParams reduces tool arguments to loggable metadata.
//
// Scalar settings (format, damping, steps, iterations) are logged by value.
// Tables are logged by size only, and free text by presence. Anything else
// is dropped. "_param_count" is always present.
func sanitizeToolParams(params map[string]interface{}) map[string]string {
	if params == nil {
		return nil
	}

	safeValueParams := map[string]bool{
		"format":     true,
		"damping":    true,
		"steps":      true,
		"iterations": true,
	}

	presenceOnlyParams := map[string]bool{
		"network":  true,
		"subject":  true,
		"relation": true,
		"object":   true,
		"text":     true,
	}

	result := make(map[string]string)
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	count := 0
	for _, key := range keys {
		val := params[key]
		switch {
		case isUnset(val):
			continue
		case safeValueParams[key]:
			result[key] = fmt.Sprintf("%v", deref(val))
		case presenceOnlyParams[key]:
			result[key] = "(set)"
		default:
			if n, ok := tableSize(val); ok {
				result[key] = fmt.Sprintf("%d entries", n)
			}
		}
		count++
	}

	result["_param_count"] = fmt.Sprintf("%d", count)
	return result
}

// isUnset reports values tools treat as absent: empty strings, nil pointers
// and empty tables.
func isUnset(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case *float64:
		return t == nil
	case *int:
		return t == nil
	}
	if n, ok := tableSize(v); ok {
		return n == 0
	}
	return false
}

func deref(v interface{}) interface{} {
	switch t := v.(type) {
	case *float64:
		return *t
	case *int:
		return *t
	}
	return v
}

func tableSize(v interface{}) (int, bool) {
	switch t := v.(type) {
	case tension.Values:
		return len(t), true
	case tension.Connections:
		return len(t), true
	case map[string][]string:
		return len(t), true
	}
	return 0, false
}

// auditTool records a finished tool invocation.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
