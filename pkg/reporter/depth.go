package reporter

import "errors"

// MaxDepth bounds the ancestor walk so a misbehaving Context chain cannot
// loop forever.
const MaxDepth = 64

// ErrCrossOrigin is what adapters return from Parent when the parent
// context cannot be accessed across an origin boundary.
var ErrCrossOrigin = errors.New("cross-origin ancestor access denied")

// Context is one browsing context in an ancestor chain.
type Context interface {
	// IsTop reports whether this is the top-level context of its session.
	IsTop() bool

	// Parent returns the embedding context. It fails when the parent
	// cannot be accessed, typically across an origin boundary.
	Parent() (Context, error)
}

// Depth counts the ancestors between c and its top-level context.
//
// Each step is counted before its parent is accessed, so when the k-th
// ancestor cannot be reached the walk stops and returns k. Frames behind a
// cross-origin boundary therefore under-report their depth; that is not a
// failure. The second result is the error that stopped the walk early, nil
// when the top was reached.
func Depth(c Context) (int, error) {
	depth := 0
	current := c
	for !current.IsTop() {
		if depth >= MaxDepth {
			return depth, errMaxDepth
		}
		depth++
		parent, err := current.Parent()
		if err != nil {
			return depth, err
		}
		if parent == nil {
			return depth, errNoParent
		}
		current = parent
	}
	return depth, nil
}

var (
	errMaxDepth = errors.New("ancestor chain exceeds maximum depth")
	errNoParent = errors.New("context has no parent but is not top-level")
)
