package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/hueassay/internal/capture"
)

// AwaitSeek requests the frame at t and blocks until the decoder signals completion,
// the decoder reports an error, the timeout elapses or ctx is cancelled.
// A timeout returns ErrSeekTimeout; decoder failures are returned as reported
// (wrapping capture.ErrDecoder).
func AwaitSeek(ctx context.Context, src capture.VideoSource, t float64, timeout time.Duration) error {
	done := src.Seek(t)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: no completion for %.2fs within %s", ErrSeekTimeout, t, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
