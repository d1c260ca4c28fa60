package capability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

// maxResponseBytes caps how much of a response body a plugin may pull
// into memory.
const maxResponseBytes = 10 << 20 // 10 MiB

// HTTP exposes outbound HTTP access. Every request passes through the
// factory's single client, so audit logging and host allow-listing sit
// in one place.
type HTTP struct {
	ctx    *Context
	client *http.Client
}

// Response is the plugin-visible result of an HTTP call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Get performs an HTTP GET. Requires a network grant matching the
// request host or the full URL.
func (h *HTTP) Get(ctx context.Context, rawURL string) (*Response, error) {
	return h.do(ctx, http.MethodGet, rawURL, "", nil)
}

// Post performs an HTTP POST. Requires a network grant matching the
// request host or the full URL.
func (h *HTTP) Post(ctx context.Context, rawURL, contentType string, body []byte) (*Response, error) {
	return h.do(ctx, http.MethodPost, rawURL, contentType, body)
}

func (h *HTTP) do(ctx context.Context, method, rawURL, contentType string, body []byte) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, execution.NewError(execution.CodeInputValidation, "invalid url %q: %v", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, execution.NewError(execution.CodeInputValidation, "unsupported url scheme %q", u.Scheme)
	}

	// Grants may name bare hosts or full URL patterns; try the host
	// form first and fall back to the whole URL before denying.
	op := manifest.Operation{Type: manifest.OpNetwork, Action: manifest.ActionAccess, Resource: u.Hostname()}
	if !h.ctx.allows(op) {
		op.Resource = rawURL
		if err := h.ctx.check(op); err != nil {
			return nil, err
		}
	}
	h.ctx.recordEgress(op)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}
