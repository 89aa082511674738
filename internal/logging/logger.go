// Package logging provides leveled logging and step tracing for tensionflow.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A StepLogger for structured JSONL propagation traces (<data dir>/steps.jsonl)
package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/tensionflow/internal/tension"
)

// LevelTrace is a custom slog level below Debug. At this level every node
// value of every propagation step is logged.
const LevelTrace = slog.LevelDebug - 4

// StepLogFile is the name of the JSONL file written by StepLogger.
const StepLogFile = "steps.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StepEvent is the event name carried by every step record.
const StepEvent = "propagation_step"

// StepRecord is one propagation step as written to the step log.
type StepRecord struct {
	Time          time.Time      `json:"time"`
	Event         string         `json:"event"`
	RunID         string         `json:"run_id"`
	Scenario      string         `json:"scenario"`
	Step          int            `json:"step"`
	Damping       tension.Number `json:"damping"`
	Values        tension.Values `json:"values"`
	GlobalTension tension.Number `json:"global_tension"`
}

// StepLogger appends StepRecords to <dir>/steps.jsonl, one JSON object per
// line. It is safe for concurrent use and a nil StepLogger drops everything.
type StepLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewStepLogger opens the step log in dir. Step tracing is a debug feature:
// below debug level, or when the file cannot be opened, it returns nil.
func NewStepLogger(dir string, level string) *StepLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, StepLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &StepLogger{file: f}
}

// LogStep writes rec as one line. Event is always StepEvent and a zero Time
// is replaced by the current time.
func (sl *StepLogger) LogStep(rec StepRecord) {
	if sl == nil {
		return
	}

	rec.Event = StepEvent
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.file == nil {
		return
	}
	_, _ = sl.file.Write(data)
}

// Close closes the underlying file. Later LogStep calls are dropped.
func (sl *StepLogger) Close() {
	if sl == nil {
		return
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.file != nil {
		sl.file.Close()
		sl.file = nil
	}
}

// ReadSteps returns the records in <dir>/steps.jsonl in file order. A
// non-empty runID keeps only that run's records.
func ReadSteps(dir, runID string) ([]StepRecord, error) {
	f, err := os.Open(filepath.Join(dir, StepLogFile))
	if err != nil {
		return nil, fmt.Errorf("open step log: %w", err)
	}
	defer f.Close()

	var records []StepRecord
	dec := json.NewDecoder(f)
	for line := 1; ; line++ {
		var rec StepRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("step log record %d: %w", line, err)
		}
		if runID == "" || rec.RunID == runID {
			records = append(records, rec)
		}
	}
	return records, nil
}
