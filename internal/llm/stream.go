package llm

import (
	"context"
	"strings"
)

const doneSentinel = "[DONE]"

// DataPayload extracts the payload of an SSE "data:" line. ok is false for
// any other line and for the [DONE] sentinel.
func DataPayload(line string) (payload string, ok bool) {
	rest, found := strings.CutPrefix(line, "data:")
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || rest == doneSentinel {
		return "", false
	}
	return rest, true
}

// Emit forwards one delta; it reports false once the consumer is gone.
type Emit func(delta string) bool

// Pump runs fn on its own goroutine and exposes what it emits as a
// StreamResult channel. A non-nil error from fn becomes the final result.
// Nothing is delivered after ctx is done, and the channel is always closed.
func Pump(ctx context.Context, fn func(emit Emit) error) <-chan StreamResult {
	ch := make(chan StreamResult)

	go func() {
		defer close(ch)

		emit := func(delta string) bool {
			select {
			case ch <- StreamResult{Delta: delta}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if err := fn(emit); err != nil && ctx.Err() == nil {
			select {
			case ch <- StreamResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch
}
