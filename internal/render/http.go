package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/ogc"
)

// DefaultMaxBodyBytes caps upstream responses read by HTTPRenderer (32 MiB).
const DefaultMaxBodyBytes = 32 << 20

// ErrBodyTooLarge is returned when an upstream response exceeds the body cap.
var ErrBodyTooLarge = errors.New("upstream response too large")

//nolint:gochecknoglobals // hop-by-hop headers are never copied from upstream
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

// HTTPRenderer forwards requests to a co-located map server.
type HTTPRenderer struct {
	// BaseURL is the upstream endpoint. Its own query parameters are kept unless the
	// request overrides them.
	BaseURL      string
	Client       *http.Client
	MaxBodyBytes int64
}

// NewHTTPRenderer returns a renderer for baseURL with a bounded client.
func NewHTTPRenderer(baseURL string, timeout time.Duration) (*HTTPRenderer, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid renderer url %q", baseURL)
	}
	return &HTTPRenderer{
		BaseURL:      baseURL,
		Client:       &http.Client{Timeout: timeout},
		MaxBodyBytes: DefaultMaxBodyBytes,
	}, nil
}

// Render implements Renderer.
func (h *HTTPRenderer) Render(ctx context.Context, req ogc.Request) (*Response, error) {
	target, err := MergeQuery(h.BaseURL, req.Params)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	headers := make(http.Header)
	for k, v := range resp.Header {
		if !hopHeaders[http.CanonicalHeaderKey(k)] {
			headers[k] = append([]string(nil), v...)
		}
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "render").
		Str("operation", "http_render").
		Str("product", string(req.Product)).
		Str("service", string(req.Service)).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("upstream render complete")

	return &Response{Status: resp.StatusCode, Body: body, Headers: headers}, nil
}

// MergeQuery sets every parameter of params on base. Parameters already present on base
// are kept unless params overrides them. base must be an absolute http(s) URL.
func MergeQuery(base string, params url.Values) (string, error) {
	if err := federation.ValidateEndpoint(base); err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	q := u.Query()
	for k, vs := range params {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
