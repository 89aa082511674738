package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nvandessel/tensionflow/internal/config"
	"github.com/nvandessel/tensionflow/internal/logging"
	"github.com/nvandessel/tensionflow/internal/scenario"
	"github.com/nvandessel/tensionflow/internal/tension"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// isolateHome points HOME and the data directory at temp directories so
// tests never touch a real ~/.tensionflow. It returns the data directory.
func isolateHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	dataDir := filepath.Join(tmp, "data")

	t.Setenv("HOME", filepath.Join(tmp, "home"))
	t.Setenv("TENSIONFLOW_DATA_DIR", dataDir)
	t.Setenv("TENSIONFLOW_DAMPING", "")
	t.Setenv("TENSIONFLOW_STEPS", "")
	t.Setenv("TENSIONFLOW_LOG_LEVEL", "")
	return dataDir
}

// runCLI executes the root command in-process and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// mustRunJSON runs a command with --json and decodes its output into v.
func mustRunJSON(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out, _, err := runCLI(t, append(args, "--json")...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %v output %q: %v", args, out, err)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"config", "expr", "flow", "graph", "mcp-server", "network", "propagate", "version"}

	var got []string
	for _, c := range root.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subcommands mismatch (-want +got):\n%s", diff)
	}

	for _, flag := range []string{"json", "config", "log-level"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	isolateHome(t)

	out, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "tensionflow version "+version) {
		t.Errorf("unexpected version output: %q", out)
	}

	var info map[string]string
	mustRunJSON(t, &info, "version")
	if info["version"] != version {
		t.Errorf("json version = %q, want %q", info["version"], version)
	}
}

func TestPropagate_Builtin(t *testing.T) {
	isolateHome(t)

	var res scenario.Result
	mustRunJSON(t, &res, "propagate", "--builtin", "equilibrium")

	if len(res.Steps) != 6 {
		t.Fatalf("len(Steps) = %d, want 6", len(res.Steps))
	}
	if diff := cmp.Diff(tension.Values{"X": 1.2, "Y": -1.4}, res.Final(), approx); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_Inline(t *testing.T) {
	isolateHome(t)

	var res scenario.Result
	mustRunJSON(t, &res, "propagate",
		"--values", `{"X":0.3,"Y":-0.5}`,
		"--connections", `{"X":{"Y":0.2},"Y":{"X":-0.2}}`,
		"--steps", "1")

	if diff := cmp.Diff(tension.Values{"X": 0.48, "Y": -0.68}, res.Final(), approx); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
	if res.Damping != tension.DefaultDamping {
		t.Errorf("Damping = %v, want %v", res.Damping, tension.DefaultDamping)
	}
}

func TestPropagate_FlagOverrides(t *testing.T) {
	isolateHome(t)

	var res scenario.Result
	mustRunJSON(t, &res, "propagate",
		"--values", `{"A":0}`,
		"--connections", `{"A":{"B":1}}`,
		"--damping", "0.5",
		"--steps", "3")

	if len(res.Steps) != 4 {
		t.Errorf("len(Steps) = %d, want 4", len(res.Steps))
	}
	if diff := cmp.Diff(tension.Values{"A": 1.5}, res.Final(), approx); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_ConfigDefaults(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  damping: 0.5\nsimulation:\n  steps: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var res scenario.Result
	mustRunJSON(t, &res, "propagate", "--config", path,
		"--values", `{"A":0}`,
		"--connections", `{"A":{"B":1}}`)

	if len(res.Steps) != 3 {
		t.Errorf("len(Steps) = %d, want 3", len(res.Steps))
	}
	if diff := cmp.Diff(tension.Values{"A": 1.0}, res.Final(), approx); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_TextOutput(t *testing.T) {
	isolateHome(t)

	out, _, err := runCLI(t, "propagate", "--builtin", "sentence")
	if err != nil {
		t.Fatalf("propagate failed: %v", err)
	}
	for _, want := range []string{"step 0  global tension", "step 1  global tension", "A  1.0000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, "propagate", "--builtin", "sentence", "--final")
	if err != nil {
		t.Fatalf("propagate --final failed: %v", err)
	}
	if strings.Contains(out, "step 0") || !strings.Contains(out, "step 1") {
		t.Errorf("--final should print only the last step:\n%s", out)
	}
}

func TestPropagate_ScenarioFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "pair.yaml")
	yaml := "name: pair\nsteps: 1\nnodes: {A: 1, B: 2}\nrelations:\n  - {a: A, b: B, weight: 0.5}\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	var res scenario.Result
	mustRunJSON(t, &res, "propagate", "--scenario", path)

	if res.Scenario != "pair" {
		t.Errorf("Scenario = %q, want pair", res.Scenario)
	}
	want := tension.Values{"A": 1 + 0.9*0.5, "B": 2 + 0.9*0.5}
	if diff := cmp.Diff(want, res.Final(), approx); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_SourceErrors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"propagate"}},
		{"two sources", []string{"propagate", "--builtin", "sentence", "--values", `{"A":1}`}},
		{"connections without values", []string{"propagate", "--builtin", "sentence", "--connections", `{}`}},
		{"bad values JSON", []string{"propagate", "--values", `{A:1}`}},
		{"bad connections JSON", []string{"propagate", "--values", `{"A":1}`, "--connections", `[1]`}},
		{"unknown builtin", []string{"propagate", "--builtin", "nope"}},
		{"negative steps", []string{"propagate", "--builtin", "sentence", "--steps", "-1"}},
		{"missing network", []string{"propagate", "--network", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runCLI(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestPropagate_StepLog(t *testing.T) {
	dataDir := isolateHome(t)

	_, stderr, err := runCLI(t, "propagate", "--builtin", "equilibrium", "--log-level", "debug")
	if err != nil {
		t.Fatalf("propagate failed: %v", err)
	}
	if !strings.Contains(stderr, "scenario run started") {
		t.Errorf("debug log missing from stderr:\n%s", stderr)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, logging.StepLogFile))
	if err != nil {
		t.Fatalf("step log not written: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 6 {
		t.Errorf("step log has %d lines, want 6", lines)
	}
}

func TestFlowCmd(t *testing.T) {
	isolateHome(t)

	var out struct {
		Tensions      map[string]float64 `json:"tensions"`
		GlobalTension float64            `json:"global_tension"`
		Iterations    int                `json:"iterations"`
	}
	mustRunJSON(t, &out, "flow", "--builtin", "triangle")

	if diff := cmp.Diff(map[string]float64{"a": 4, "b": 3, "c": 5}, out.Tensions, approx); diff != "" {
		t.Errorf("tensions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(4.0, out.GlobalTension, approx); diff != "" {
		t.Errorf("global tension mismatch (-want +got):\n%s", diff)
	}
	if out.Iterations != 3 {
		t.Errorf("iterations = %d, want config default 3", out.Iterations)
	}

	text, _, err := runCLI(t, "flow", "--builtin", "triangle")
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}
	if !strings.Contains(text, "global tension 4.0000") {
		t.Errorf("unexpected flow output:\n%s", text)
	}

	if _, _, err := runCLI(t, "flow", "--builtin", "triangle", "--iterations", "-1"); err == nil {
		t.Error("expected error for negative iterations")
	}
}

func TestGraphCmd(t *testing.T) {
	isolateHome(t)

	out, _, err := runCLI(t, "graph", "--builtin", "equilibrium")
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.HasPrefix(out, "digraph tension {") {
		t.Errorf("default format should be DOT:\n%s", out)
	}

	var g map[string]interface{}
	out, _, err = runCLI(t, "graph", "--builtin", "equilibrium", "--format", "json")
	if err != nil {
		t.Fatalf("graph json failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &g); err != nil {
		t.Fatalf("decode graph JSON: %v", err)
	}
	if g["node_count"] != 2.0 || g["edge_count"] != 2.0 {
		t.Errorf("counts = %v nodes, %v edges; want 2, 2", g["node_count"], g["edge_count"])
	}

	out, _, err = runCLI(t, "graph", "--builtin", "equilibrium", "--format", "text", "--final")
	if err != nil {
		t.Fatalf("graph --final failed: %v", err)
	}
	if !strings.Contains(out, "X  1.2000") || !strings.Contains(out, "Y  -1.4000") {
		t.Errorf("--final should draw the last step:\n%s", out)
	}

	if _, _, err := runCLI(t, "graph", "--builtin", "equilibrium", "--format", "svg"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestGraphCmd_OutputFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "sentence.dot")

	out, _, err := runCLI(t, "graph", "--builtin", "sentence", "-o", path)
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("expected confirmation naming %s, got %q", path, out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "digraph tension") {
		t.Errorf("output file is not DOT:\n%s", data)
	}

	if _, _, err := runCLI(t, "graph", "--builtin", "sentence", "--open"); err == nil {
		t.Error("expected error for --open without --output")
	}
}

func TestConfigCmd(t *testing.T) {
	dataDir := isolateHome(t)

	var cfg config.Config
	mustRunJSON(t, &cfg, "config", "show")
	if cfg.Engine.Damping != tension.DefaultDamping {
		t.Errorf("damping = %v, want default", cfg.Engine.Damping)
	}
	if cfg.Storage.DataDir != dataDir {
		t.Errorf("data_dir = %q, want env override %q", cfg.Storage.DataDir, dataDir)
	}

	out, _, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "damping: 0.9") {
		t.Errorf("YAML output missing damping:\n%s", out)
	}

	out, _, err = runCLI(t, "config", "validate")
	if err != nil || !strings.Contains(out, "valid") {
		t.Errorf("validate effective config: out=%q err=%v", out, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("simulation:\n  steps: -1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "config", "validate", bad); err == nil {
		t.Error("expected validation error for negative steps")
	}

	if _, _, err := runCLI(t, "config", "show", "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid --log-level")
	}
}

func TestPropagate_NonFiniteJSON(t *testing.T) {
	isolateHome(t)

	out, _, err := runCLI(t, "propagate", "--json",
		"--values", `{"A":1.7e308}`,
		"--connections", `{"A":{"B":1.7e308}}`,
		"--damping", "1",
		"--steps", "1")
	if err != nil {
		t.Fatalf("propagate with overflowing values failed: %v", err)
	}
	if !strings.Contains(out, `"+Inf"`) {
		t.Errorf("overflowed value should be written as \"+Inf\":\n%s", out)
	}

	var res scenario.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !math.IsInf(res.Final()["A"], 1) {
		t.Errorf("final A = %v, want +Inf", res.Final()["A"])
	}
}

func TestGraph_NonFiniteJSON(t *testing.T) {
	isolateHome(t)

	path := filepath.Join(t.TempDir(), "inf.yaml")
	yaml := "name: overflow\nnodes:\n  A: .inf\n  B: 1\nrelations:\n  - {a: A, b: B, weight: 0.5}\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "graph", "--scenario", path, "--format", "json")
	if err != nil {
		t.Fatalf("graph json with an infinite value failed: %v", err)
	}
	if !strings.Contains(out, `"value": "+Inf"`) {
		t.Errorf("infinite node value should render as a string:\n%s", out)
	}
}
