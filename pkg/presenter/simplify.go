package presenter

import (
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/publicsuffix"

	"github.com/entrhq/frametree/pkg/registry"
)

// VisualNode is the display projection of a registry node.
type VisualNode struct {
	Domain   string        `json:"domain"`
	Path     string        `json:"path"`
	Site     string        `json:"site,omitempty"`
	Children []*VisualNode `json:"children,omitempty"`
}

// Simplify maps every node of tree to its host and path, keeping the shape
// of the tree exactly, replicated nodes included. A nil tree yields nil.
func Simplify(tree registry.Tree) ([]*VisualNode, error) {
	if tree == nil {
		return nil, nil
	}
	out := make([]*VisualNode, 0, len(tree))
	for _, node := range tree {
		v, err := simplifyNode(node)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func simplifyNode(node *registry.Node) (*VisualNode, error) {
	u, err := url.Parse(node.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame url %q: %w", node.URL, err)
	}

	v := &VisualNode{
		Domain: u.Hostname(),
		Path:   u.Path,
		Site:   site(u.Hostname()),
	}
	if v.Path == "" && u.Opaque != "" {
		v.Path = u.Opaque
	}

	if len(node.Children) > 0 {
		v.Children = make([]*VisualNode, 0, len(node.Children))
		for _, child := range node.Children {
			c, err := simplifyNode(child)
			if err != nil {
				return nil, err
			}
			v.Children = append(v.Children, c)
		}
	}
	return v, nil
}

// site returns the registrable domain of host, or "" for hosts such as IP
// addresses and localhost that have none.
func site(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	s, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return s
}

// CountNodes returns the number of rendered nodes, replicas included.
func CountNodes(nodes []*VisualNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Children)
	}
	return n
}
