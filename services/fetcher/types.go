package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"rss-notifier/pkg/feed"
)

type Service interface {
	Fetch(ctx context.Context, url string) (*feed.Feed, error)
}

type Impl struct {
	client    *http.Client
	userAgent string
}

// NetworkError is a connection or transport level failure: the source was
// never reached.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseError is a non-2xx response, with a snippet of the body kept for
// the log.
type ResponseError struct {
	URL         string
	StatusCode  int
	BodySnippet string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s: %s", e.StatusCode, e.URL, e.BodySnippet)
}

// BodyReadError is a failure while draining the response body.
type BodyReadError struct {
	URL string
	Err error
}

func (e *BodyReadError) Error() string {
	return fmt.Sprintf("failed to read response body from %s: %v", e.URL, e.Err)
}

func (e *BodyReadError) Unwrap() error { return e.Err }
