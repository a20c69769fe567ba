package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

const (
	treeHeader = "🌳 Iframe tree:"
	viewHeader = "🌲 Hierarchical view:"
)

// RenderText writes nodes as an indented listing, root first and depth
// first, two spaces per level.
func RenderText(w io.Writer, nodes []*VisualNode) error {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n, 0)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeNode(b *strings.Builder, n *VisualNode, level int) {
	if n == nil {
		return
	}
	fmt.Fprintf(b, "%s📄 %s%s\n", strings.Repeat("  ", level), n.Domain, n.Path)
	for _, child := range n.Children {
		writeNode(b, child, level+1)
	}
}

// RenderJSON writes nodes as indented JSON. With highlight set the output is
// colored for a 256-color terminal.
func RenderJSON(w io.Writer, nodes []*VisualNode, highlight bool) error {
	data, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	data = append(data, '\n')

	if highlight {
		if err := quick.Highlight(w, string(data), "json", "terminal256", "monokai"); err != nil {
			return fmt.Errorf("failed to highlight tree: %w", err)
		}
		return nil
	}
	_, err = w.Write(data)
	return err
}
