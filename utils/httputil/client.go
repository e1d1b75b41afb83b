package httputil

import (
	"fmt"
	"io"
	"net/http"
)

// maxDrainSize bounds how much of an unread body gets consumed before closing
// so the underlying TCP connection can still be reused.
const maxDrainSize = 2 << 10 // 2KB

// CloseResponse drains a little of the response body and closes it. No need
// to check for errors: if draining fails the Transport won't reuse the
// connection anyway.
func CloseResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainSize)
		_ = resp.Body.Close()
	}
}

// ReadAndClose reads the response body up to limit bytes, then closes it,
// draining any remainder first. Every response handed to the driver goes
// through here so no code path can leak a body.
func ReadAndClose(resp *http.Response, limit int64) ([]byte, error) {
	defer CloseResponse(resp)
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// IsSuccessStatus reports whether the status code is in the 2xx range.
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
