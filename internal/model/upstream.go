package model

import "io"

// UpstreamResponse is a raw upstream reply. The receiver closes Body.
// ContentLength is -1 when the upstream did not declare a length.
type UpstreamResponse struct {
	StatusCode    int
	ContentLength int64
	Body          io.ReadCloser
}
