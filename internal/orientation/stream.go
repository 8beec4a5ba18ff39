package orientation

import (
	"context"
	"log"
	"time"
)

// Stream polls src and delivers readings until ctx is done. With a zero
// interval src is read back to back, which suits sources whose Next blocks.
// The channel is closed when the stream ends.
func Stream(ctx context.Context, src Source, axis Axis, interval time.Duration) <-chan Reading {
	out := make(chan Reading)

	go func() {
		defer close(out)

		var tick <-chan time.Time
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			pose, err := src.Next()
			if err != nil {
				log.Printf("orientation: source error: %v", err)
				if interval == 0 {
					// A blocking source that errors is done (closed port, EOF).
					return
				}
				continue
			}

			select {
			case out <- ReadingFromPose(pose, axis, time.Now()):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
