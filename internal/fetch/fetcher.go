package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/logger"
)

// Fetcher retrieves the full body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPClient is the subset of *http.Client used by HTTPFetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher implements Fetcher with a single GET request.
type HTTPFetcher struct {
	// httpClient performs the request; redirects follow its policy.
	httpClient HTTPClient
	// progress receives the progress bar, nil disables it.
	progress io.Writer
	// timeout bounds the whole request including the body read.
	timeout time.Duration
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithProgress renders a byte progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(f *HTTPFetcher) {
		f.progress = w
	}
}

// WithTimeout bounds the request duration.
func WithTimeout(timeout time.Duration) Option {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher backed by http.DefaultClient.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger.Infof(ctx, "Downloading %s...", url)

	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	response, err := f.httpClient.Do(req)
	if err != nil {
		return nil, transportError(url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, &install.RemoteFetchError{
			URL:        url,
			Status:     response.Status,
			StatusCode: response.StatusCode,
		}
	}

	body := io.Reader(response.Body)

	if f.progress != nil {
		bar := newProgressBar(f.progress, response.ContentLength)
		defer func() {
			_ = bar.Finish()
		}()

		body = io.TeeReader(body, bar)
	}

	var buf bytes.Buffer
	if response.ContentLength > 0 {
		buf.Grow(int(response.ContentLength))
	}

	if _, err = buf.ReadFrom(body); err != nil {
		return nil, transportError(url, err)
	}

	logger.InfoKV(ctx, "Downloaded archive", "size", humanize.Bytes(uint64(buf.Len())))

	return buf.Bytes(), nil
}

// transportError classifies a failure that happened before or while reading the body.
// Cancellation by the caller is passed through unchanged.
func transportError(url string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	return &install.NetworkError{URL: url, Err: err}
}

func newProgressBar(w io.Writer, total int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}
