package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"rss-notifier/models/constants"
	"rss-notifier/pkg/feed"

	"github.com/spf13/viper"
)

const (
	maxDocumentBytes = 10 << 20
	bodySnippetBytes = 512
)

func New() *Impl {
	timeout := time.Duration(viper.GetInt(constants.HTTPTimeout)) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Impl{
		client:    &http.Client{Timeout: timeout},
		userAgent: viper.GetString(constants.FeedUserAgent),
	}
}

// Fetch retrieves a feed document and hands it to the parser. Failures keep
// their classification: NetworkError, ResponseError and BodyReadError mean
// the source could not be read, while parser errors mean it was read but is
// not a valid feed.
func (service *Impl) Fetch(ctx context.Context, url string) (*feed.Feed, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	request.Header.Set("User-Agent", service.userAgent)

	response, err := service.client.Do(request)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, bodySnippetBytes))
		return nil, &ResponseError{
			URL:         url,
			StatusCode:  response.StatusCode,
			BodySnippet: strings.TrimSpace(string(snippet)),
		}
	}

	document, err := io.ReadAll(io.LimitReader(response.Body, maxDocumentBytes))
	if err != nil {
		return nil, &BodyReadError{URL: url, Err: err}
	}

	return feed.Parse(document)
}
