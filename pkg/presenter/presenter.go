package presenter

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/transport"
)

// DefaultInterval is how often Run polls the registry.
const DefaultInterval = 2 * time.Second

// NoFramesMessage is printed when the session has no registered frames.
const NoFramesMessage = "No iframes detected"

// Options configures a Presenter.
type Options struct {
	// Interval between polls; DefaultInterval when zero.
	Interval time.Duration

	// JSON adds the serialized tree before the indented view.
	JSON bool

	// Highlight colors the JSON output.
	Highlight bool

	// Output receives the rendered tree; os.Stdout when nil.
	Output io.Writer
}

// Presenter periodically fetches the tree of the top-level session and
// renders it. It never writes to the registry.
type Presenter struct {
	channel transport.Channel
	logger  logging.Sink
	opts    Options
}

// New creates a presenter that queries over ch, which must be bound to the
// top-level frame of the session to display.
func New(ch transport.Channel, logger logging.Sink, opts Options) *Presenter {
	if logger == nil {
		logger = logging.Nop{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Presenter{channel: ch, logger: logger, opts: opts}
}

// Poll fetches and simplifies the current tree. A nil result with a nil
// error means no frames were detected.
func (p *Presenter) Poll(ctx context.Context) ([]*VisualNode, error) {
	tree, err := transport.GetTree(ctx, p.channel)
	if err != nil {
		return nil, err
	}
	return Simplify(tree)
}

// Display runs one poll and renders the result to the output.
func (p *Presenter) Display(ctx context.Context) error {
	nodes, err := p.Poll(ctx)
	if err != nil {
		return err
	}
	return p.Render(nodes)
}

// Render writes nodes to the output: the no-frames message for nil, else
// the optional JSON block followed by the indented view.
func (p *Presenter) Render(nodes []*VisualNode) error {
	out := p.opts.Output
	if nodes == nil {
		p.logger.Infof(NoFramesMessage)
		_, err := fmt.Fprintln(out, NoFramesMessage)
		return err
	}

	if p.opts.JSON {
		fmt.Fprintln(out, treeHeader)
		if err := RenderJSON(out, nodes, p.opts.Highlight); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, viewHeader)
	return RenderText(out, nodes)
}

// Run displays the tree immediately and then on every interval until ctx
// is cancelled. Failed polls are logged and do not stop the loop.
func (p *Presenter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if err := p.Display(ctx); err != nil && ctx.Err() == nil {
			p.logger.Errorf("Error while displaying the tree: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
