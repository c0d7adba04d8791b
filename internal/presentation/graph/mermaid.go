package graph

import (
	"fmt"
	"strings"

	"github.com/warp/b2b-engine/generic"
)

// Edge is one rule of a lifecycle, flattened to strings.
type Edge struct {
	From   string `json:"from"`
	Action string `json:"action"`
	To     string `json:"to"`
	Guard  string `json:"guard,omitempty"`
}

// Graph is a lifecycle's states and edges in declaration order.
type Graph struct {
	Name   string   `json:"name"`
	States []string `json:"states"`
	Edges  []Edge   `json:"edges"`
}

// Overlay highlights a path through the graph.
type Overlay struct {
	Visited []string
	Current string
}

// FromEngine flattens an engine's table. Guards are attached to every edge
// of the guarded action.
func FromEngine[S ~string, A ~string](e *generic.Engine[S, A]) Graph {
	g := Graph{Name: e.Name()}
	for _, s := range e.States() {
		g.States = append(g.States, string(s))
	}
	for _, r := range e.Rules() {
		edge := Edge{From: string(r.From), Action: string(r.Action), To: string(r.To)}
		if p, ok := e.Precondition(r.Action); ok {
			edge.Guard = p.Description
		}
		g.Edges = append(g.Edges, edge)
	}
	return g
}

// Terminal lists states with no outgoing edge.
func (g Graph) Terminal() []string {
	hasOut := make(map[string]bool, len(g.States))
	for _, e := range g.Edges {
		hasOut[e.From] = true
	}
	var out []string
	for _, s := range g.States {
		if !hasOut[s] {
			out = append(out, s)
		}
	}
	return out
}

// GenerateMermaid renders a flowchart:
// - Initial (first declared) state: ((Circle))
// - Terminal states: ([Stadium])
// - Other states: [Rectangle]
// Guarded edges are dotted and carry the guard in their label.
func GenerateMermaid(g Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	terminal := make(map[string]bool)
	for _, s := range g.Terminal() {
		terminal[s] = true
	}

	for i, s := range g.States {
		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case terminal[s]:
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeID(s), opener, s, closer)
	}

	for _, e := range g.Edges {
		label := e.Action
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if e.Guard != "" {
			label = fmt.Sprintf("%s [%s]", e.Action, strings.ReplaceAll(e.Guard, "\"", "'"))
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeID(e.From), arrow, sanitizeID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, s := range overlay.Visited {
			id := sanitizeID(s)
			if id != "" && !seen[id] {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
