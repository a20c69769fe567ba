package browser

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/frametree/pkg/reporter"
)

var errDetached = errors.New("frame detached from its parent")

// parentOf returns f's parent frame, or nil for a main frame. Playwright may
// hand back a typed nil, so the interface value alone is not enough.
func parentOf(f playwright.Frame) playwright.Frame {
	p := f.ParentFrame()
	if p == nil {
		return nil
	}
	if v := reflect.ValueOf(p); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil
	}
	return p
}

// FrameContext walks a page's frame tree through playwright frame handles.
// The driver can reach every ancestor, so the walk is never cut short by
// origin boundaries.
type FrameContext struct {
	Frame playwright.Frame
}

// IsTop implements reporter.Context.
func (c FrameContext) IsTop() bool {
	return parentOf(c.Frame) == nil
}

// Parent implements reporter.Context.
func (c FrameContext) Parent() (reporter.Context, error) {
	p := parentOf(c.Frame)
	if p == nil {
		return nil, errDetached
	}
	return FrameContext{Frame: p}, nil
}

// depthScript runs inside a frame and walks window.parent the way a content
// script does. Reading window.top across origins can throw, in which case
// the count so far is returned with crossOrigin set.
const depthScript = `() => {
  let current = window;
  let depth = 0;
  try {
    while (current !== window.top) {
      depth++;
      current = current.parent;
    }
  } catch (e) {
    return { depth, crossOrigin: true };
  }
  return { depth, crossOrigin: false };
}`

// MeasuredContext replays a depth measured inside the frame as an ancestor
// chain, so the reporter treats in-page and handle-based walks alike.
type MeasuredContext struct {
	Remaining   int
	CrossOrigin bool
}

// IsTop implements reporter.Context. A spent chain is the top whatever
// CrossOrigin says, so a replay never reports more hops than were measured.
func (c MeasuredContext) IsTop() bool {
	return c.Remaining <= 0
}

// Parent implements reporter.Context. The step that hit the origin boundary
// fails with reporter.ErrCrossOrigin.
func (c MeasuredContext) Parent() (reporter.Context, error) {
	if c.CrossOrigin && c.Remaining <= 1 {
		return nil, reporter.ErrCrossOrigin
	}
	return MeasuredContext{Remaining: c.Remaining - 1, CrossOrigin: c.CrossOrigin}, nil
}

// Measure runs the depth walk inside frame f.
func Measure(f playwright.Frame) (MeasuredContext, error) {
	result, err := f.Evaluate(depthScript)
	if err != nil {
		return MeasuredContext{}, fmt.Errorf("failed to evaluate depth script: %w", err)
	}

	fields, ok := result.(map[string]interface{})
	if !ok {
		return MeasuredContext{}, fmt.Errorf("unexpected depth script result %T", result)
	}

	depth, err := toInt(fields["depth"])
	if err != nil {
		return MeasuredContext{}, err
	}
	crossOrigin, _ := fields["crossOrigin"].(bool)
	return MeasuredContext{Remaining: depth, CrossOrigin: crossOrigin}, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("depth %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected depth type %T", v)
	}
}
