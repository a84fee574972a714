package httpclient

import (
	"errors"
	"fmt"
)

// ErrDecodeResponse wraps a 2xx body that is not the expected JSON.
var ErrDecodeResponse = errors.New("failed to decode response")

// UpstreamError represents a non-2xx answer from an upstream service
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}
