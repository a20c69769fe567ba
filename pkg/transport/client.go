package transport

import (
	"context"
	"fmt"

	"github.com/entrhq/frametree/pkg/registry"
)

// RegisterFrame sends REGISTER_FRAME_URL with depth over ch.
func RegisterFrame(ctx context.Context, ch Channel, depth int) error {
	resp, err := ch.Send(ctx, Message{Type: TypeRegisterFrameURL, FrameDepth: depth})
	if err != nil {
		return err
	}
	if !resp.Success {
		return rejected(resp)
	}
	return nil
}

// GetTree sends GET_IFRAME_TREE over ch. A nil tree with a nil error means
// no frames were detected; transport problems are returned as *Error.
func GetTree(ctx context.Context, ch Channel) (registry.Tree, error) {
	resp, err := ch.Send(ctx, Message{Type: TypeGetIframeTree})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, rejected(resp)
	}
	return resp.Tree, nil
}

func rejected(resp Response) error {
	if resp.Error == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, resp.Error)
}
