package reporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/transport"
)

// Reporter computes a frame's depth and registers it, once, over the frame
// channel. Send failures are logged and returned; nothing is retried.
type Reporter struct {
	logger logging.Sink
}

// New creates a reporter. A nil logger discards output.
func New(logger logging.Sink) *Reporter {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Reporter{logger: logger}
}

// Report walks c's ancestors and sends REGISTER_FRAME_URL over ch, which
// already carries the frame's identity. It returns the depth that was sent.
func (r *Reporter) Report(ctx context.Context, ch transport.Channel, c Context) (int, error) {
	depth, walkErr := Depth(c)
	if walkErr != nil {
		if errors.Is(walkErr, ErrCrossOrigin) {
			r.logger.Warnf("Cross-origin security error encountered. Stopping depth calculation at %d.", depth)
		} else {
			r.logger.Warnf("Depth calculation stopped at %d: %v", depth, walkErr)
		}
	}

	if err := transport.RegisterFrame(ctx, ch, depth); err != nil {
		r.logger.Errorf("Error during frame registration: %v", err)
		return depth, fmt.Errorf("failed to register frame: %w", err)
	}

	r.logger.Debugf("Frame registered successfully. Depth: %d", depth)
	return depth, nil
}
