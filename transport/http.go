package transport

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http/httpproxy"
)

const defaultRetries = 3

// HTTP fetches ranges of a document served over HTTP with Range requests.
type HTTP struct {
	url     string
	client  *http.Client
	header  http.Header
	retries int
	log     logrus.FieldLogger

	mu     sync.Mutex
	length int64
}

var _ Transport = (*HTTP)(nil)
var _ Streamer = (*HTTP)(nil)

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithClient sets the http.Client used for every request.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) { h.header.Add(key, value) }
}

// WithRetries sets how many times a failed request is retried (default: 3).
func WithRetries(n int) HTTPOption {
	return func(h *HTTP) {
		if n >= 0 {
			h.retries = n
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(log logrus.FieldLogger) HTTPOption {
	return func(h *HTTP) { h.log = log }
}

// NewHTTP returns a transport for rawURL. Proxies are taken from the
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables.
func NewHTTP(rawURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:     rawURL,
		header:  make(http.Header),
		retries: defaultRetries,
		log:     logger,
		length:  -1,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{
			Transport: &http.Transport{
				Proxy:               proxyFromEnvironment(),
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return h
}

func proxyFromEnvironment() func(*http.Request) (*url.URL, error) {
	proxy := httpproxy.FromEnvironment().ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

// backoff returns the delay before attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	if base > 5*time.Second {
		base = 5 * time.Second
	}
	return base + time.Duration(rand.Int63n(int64(base)/2))
}

// do sends a request with the extra header, retrying network failures and 5xx
// responses. The caller closes the returned body.
func (h *HTTP) do(ctx context.Context, method string, header http.Header) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 {
			d := backoff(attempt - 1)
			h.log.Debugf("retrying %s %s in %s: %v", method, h.url, d, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, h.url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		for k, vs := range h.header {
			req.Header[k] = vs
		}
		for k, vs := range header {
			req.Header[k] = vs
		}

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = errors.Errorf("%s %s: %s", method, h.url, resp.Status)
			continue
		}
		return resp, nil
	}
	return nil, errors.Wrapf(lastErr, "%s %s failed after %d attempts", method, h.url, h.retries+1)
}

// Length issues a HEAD request, falling back to a one byte range request
// when the server does not report Content-Length.
// Only a successful result is remembered.
func (h *HTTP) Length(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.length >= 0 {
		return h.length, nil
	}
	length, err := h.fetchLength(ctx)
	if err != nil {
		return -1, err
	}
	h.length = length
	return length, nil
}

func (h *HTTP) fetchLength(ctx context.Context) (int64, error) {
	resp, err := h.do(ctx, http.MethodHead, nil)
	if err != nil {
		return -1, err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK && resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}

	resp, err = h.do(ctx, http.MethodGet, http.Header{"Range": {"bytes=0-0"}})
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPartialContent:
		_, _, total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return -1, err
		}
		if total < 0 {
			return -1, errors.Errorf("%s: unknown length", h.url)
		}
		return total, nil
	case http.StatusOK:
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return -1, errors.Errorf("%s: unknown length", h.url)
	}
	return -1, errors.Errorf("GET %s: %s", h.url, resp.Status)
}

// FetchRange requests bytes [begin, end). A server that ignores the Range
// header and answers 200 still works: the prefix is skipped.
func (h *HTTP) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	if begin < 0 || end < begin {
		return nil, errors.Errorf("invalid range [%d, %d)", begin, end)
	}
	if begin == end {
		return []byte{}, nil
	}
	header := http.Header{"Range": {fmt.Sprintf("bytes=%d-%d", begin, end-1)}}
	resp, err := h.do(ctx, http.MethodGet, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	switch resp.StatusCode {
	case http.StatusPartialContent:
		first, _, _, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, err
		}
		if first != begin {
			return nil, errors.Errorf("server returned range starting at %d, want %d", first, begin)
		}
	case http.StatusOK:
		h.log.Debugf("%s ignores range requests", h.url)
		if _, err := io.CopyN(io.Discard, body, begin); err != nil {
			return nil, errors.Wrapf(err, "skip to %d", begin)
		}
	default:
		return nil, errors.Errorf("GET %s [%d, %d): %s", h.url, begin, end, resp.Status)
	}

	buf := make([]byte, end-begin)
	if _, err := io.ReadFull(body, buf); err != nil {
		return nil, errors.Wrapf(err, "read [%d, %d)", begin, end)
	}
	return buf, nil
}

// Stream returns the full response body.
func (h *HTTP) Stream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := h.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("GET %s: %s", h.url, resp.Status)
	}
	return resp.Body, nil
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// parseContentRange parses "bytes first-last/total". total is -1 for "*".
func parseContentRange(s string) (first, last, total int64, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "bytes ")
	if !ok {
		return 0, 0, 0, errors.Errorf("invalid Content-Range %q", s)
	}
	span, size, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, errors.Errorf("invalid Content-Range %q", s)
	}
	a, b, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, 0, errors.Errorf("invalid Content-Range %q", s)
	}
	if first, err = strconv.ParseInt(a, 10, 64); err != nil {
		return 0, 0, 0, errors.Wrapf(err, "invalid Content-Range %q", s)
	}
	if last, err = strconv.ParseInt(b, 10, 64); err != nil {
		return 0, 0, 0, errors.Wrapf(err, "invalid Content-Range %q", s)
	}
	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, errors.Wrapf(err, "invalid Content-Range %q", s)
		}
	}
	return first, last, total, nil
}
