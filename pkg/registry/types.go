package registry

import "encoding/json"

// SessionID identifies a top-level browsing context, such as a browser tab
// or a playwright page.
type SessionID string

// FrameRecord is what the registry knows about one embedded context.
type FrameRecord struct {
	// URL is the last reported location of the frame; it is also the key.
	URL string `json:"url"`

	// Depth counts the ancestor contexts between the frame and the
	// session's top-level context (0 = top-level).
	Depth int `json:"depth"`
}

// Node is one frame in a built tree.
//
// Children is nil for nodes of the flat fallback list and non-nil (possibly
// empty) for nodes of a rooted tree. The JSON form keeps the distinction:
// rooted leaves carry "children": [] and flat nodes have no children key.
type Node struct {
	URL      string  `json:"url"`
	Depth    int     `json:"depth"`
	Children []*Node `json:"children"`
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Children == nil {
		return json.Marshal(struct {
			URL   string `json:"url"`
			Depth int    `json:"depth"`
		}{n.URL, n.Depth})
	}
	return json.Marshal(struct {
		URL      string  `json:"url"`
		Depth    int     `json:"depth"`
		Children []*Node `json:"children"`
	}{n.URL, n.Depth, n.Children})
}

// Tree is the result of BuildTree: the root frames with their descendants,
// or the flat list when no frame reported depth 0. A nil Tree means no
// frames were detected.
type Tree []*Node

// Count returns the number of nodes in the tree, counting replicated
// nodes once per occurrence.
func (t Tree) Count() int {
	n := 0
	for _, node := range t {
		n += 1 + Tree(node.Children).Count()
	}
	return n
}
