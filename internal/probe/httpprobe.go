package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// maxDrain bounds how much of a response body is read so keep-alive
// connections can be reused without downloading large pages.
const maxDrain = 64 << 10

var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Upgrade-Insecure-Requests": "1",
}

type HTTPProbe struct {
	Client *http.Client
}

// NewHTTPProbe returns a probe whose client follows redirects. Timeouts are
// applied per call through the request context.
func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 15 * time.Second,
			},
		},
	}
}

func (h *HTTPProbe) Probe(ctx context.Context, target string, timeout time.Duration) Outcome {
	start := time.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Failure{Err: err, Took: time.Since(start)}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &timeoutError{after: timeout, cause: err}
		}
		return Failure{Err: err, Took: time.Since(start)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return Success{StatusCode: resp.StatusCode, Took: time.Since(start)}
}

type timeoutError struct {
	after time.Duration
	cause error
}

func (e *timeoutError) Error() string {
	return "timeout after " + e.after.String() + ": " + e.cause.Error()
}

func (e *timeoutError) Unwrap() error { return e.cause }
