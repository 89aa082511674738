package visualization

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/tensionflow/internal/tension"
)

func sentenceGraph() (tension.Values, tension.Connections) {
	return tension.Values{"A": 1, "B": 2, "C": -1},
		tension.Connections{
			"A": {"B": 0.5},
			"B": {"A": 0.5, "C": -0.7},
			"C": {"B": -0.7},
		}
}

func TestRenderDOT_Empty(t *testing.T) {
	dot := RenderDOT(nil, nil)

	if !strings.Contains(dot, "digraph tension") {
		t.Error("expected digraph header")
	}
	if !strings.HasSuffix(strings.TrimSpace(dot), "}") {
		t.Error("expected closing brace")
	}
}

func TestRenderDOT_WithNodes(t *testing.T) {
	values, conns := sentenceGraph()
	dot := RenderDOT(values, conns)

	for _, want := range []string{
		`"A" [label="A\n1"`,
		`"B" [label="B\n2"`,
		`"C" [label="C\n-1"`,
		`"A" -> "B" [label="0.5", color=mediumseagreen, dir=none];`,
		`"B" -> "C" [label="-0.7", color=tomato, dir=none];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("expected %q in DOT output:\n%s", want, dot)
		}
	}

	// Symmetric pairs are drawn once.
	if strings.Contains(dot, `"B" -> "A"`) || strings.Contains(dot, `"C" -> "B"`) {
		t.Errorf("symmetric edge drawn twice:\n%s", dot)
	}
}

func TestRenderDOT_AsymmetricEdges(t *testing.T) {
	dot := RenderDOT(
		tension.Values{"X": 0.3, "Y": -0.5},
		tension.Connections{"X": {"Y": 0.2}, "Y": {"X": -0.2}},
	)

	if !strings.Contains(dot, `"X" -> "Y" [label="0.2", color=mediumseagreen];`) {
		t.Errorf("missing X->Y edge:\n%s", dot)
	}
	if !strings.Contains(dot, `"Y" -> "X" [label="-0.2", color=tomato];`) {
		t.Errorf("missing Y->X edge:\n%s", dot)
	}
}

func TestRenderDOT_NodeWithoutValue(t *testing.T) {
	dot := RenderDOT(tension.Values{"A": 1}, tension.Connections{"A": {"ghost": 0.5}})

	if !strings.Contains(dot, `"ghost" [style=dashed];`) {
		t.Errorf("expected dashed node for ghost:\n%s", dot)
	}
}

func TestRenderDOT_EscapesLabels(t *testing.T) {
	dot := RenderDOT(tension.Values{`say "hi"`: 1}, nil)
	if !strings.Contains(dot, `label="say \"hi\"\n1"`) {
		t.Errorf("label not escaped:\n%s", dot)
	}
}

func TestRenderJSON(t *testing.T) {
	values, conns := sentenceGraph()
	result := RenderJSON(values, conns)

	if result["node_count"] != 3 {
		t.Errorf("node_count = %v, want 3", result["node_count"])
	}
	if result["edge_count"] != 2 {
		t.Errorf("edge_count = %v, want 2", result["edge_count"])
	}

	nodes := result["nodes"].([]map[string]interface{})
	if nodes[0]["id"] != "A" || nodes[0]["value"] != tension.Number(1) || nodes[0]["tension"] != tension.Number(0.5) {
		t.Errorf("unexpected first node: %v", nodes[0])
	}

	// Must be encodable.
	if _, err := json.Marshal(result); err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
}

func TestRenderJSON_NodeWithoutValueHasNoValueField(t *testing.T) {
	result := RenderJSON(tension.Values{"A": 1}, tension.Connections{"A": {"ghost": 0.5}})
	nodes := result["nodes"].([]map[string]interface{})

	var ghost map[string]interface{}
	for _, n := range nodes {
		if n["id"] == "ghost" {
			ghost = n
		}
	}
	if ghost == nil {
		t.Fatal("ghost node missing")
	}
	if _, ok := ghost["value"]; ok {
		t.Errorf("ghost should not carry a value: %v", ghost)
	}
}

func TestRenderText(t *testing.T) {
	got := RenderText(tension.Values{"Y": -0.68, "X": 0.48, "long": 1})
	want := "X     0.4800\nY     -0.6800\nlong  1.0000\n"
	if got != want {
		t.Errorf("RenderText() =\n%q\nwant\n%q", got, want)
	}

	if RenderText(nil) != "" {
		t.Error("RenderText(nil) should be empty")
	}
}

func TestCollectEdges(t *testing.T) {
	got := CollectEdges(tension.Connections{
		"B": {"A": 1, "C": 2},
		"A": {"B": 1, "A": 3},
		"C": {"B": -2},
	})
	want := []Edge{
		{Source: "A", Target: "A", Weight: 3},
		{Source: "A", Target: "B", Weight: 1, Symmetric: true},
		{Source: "B", Target: "C", Weight: 2},
		{Source: "C", Target: "B", Weight: -2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CollectEdges mismatch (-want +got):\n%s", diff)
	}
}

func TestRender(t *testing.T) {
	values, conns := sentenceGraph()

	tests := []struct {
		format  Format
		want    string
		wantErr bool
	}{
		{FormatDOT, "digraph tension", false},
		{FormatJSON, `"node_count": 3`, false},
		{FormatText, "A  1.0000", false},
		{Format("svg"), "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			out, err := Render(tt.format, values, conns)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Render(%s) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Render(%s) output missing %q:\n%s", tt.format, tt.want, out)
			}
		})
	}
}

func TestRender_JSONNonFinite(t *testing.T) {
	values := tension.Values{"A": math.Inf(1), "B": math.NaN()}
	conns := tension.Connections{"A": {"B": math.Inf(-1)}}

	out, err := Render(FormatJSON, values, conns)
	if err != nil {
		t.Fatalf("Render json: %v", err)
	}
	for _, want := range []string{`"value": "+Inf"`, `"value": "NaN"`, `"weight": "-Inf"`} {
		if !strings.Contains(out, want) {
			t.Errorf("json output missing %s:\n%s", want, out)
		}
	}
}
