package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

// HTTPPusher POSTs the payload as JSON.
type HTTPPusher struct {
	url    string
	client *http.Client
}

// NewHTTPPusher creates a pusher for url. A zero timeout means none.
func NewHTTPPusher(url string, timeout time.Duration) *HTTPPusher {
	return &HTTPPusher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Push sends one POST. Any non-2xx status is an error.
func (p *HTTPPusher) Push(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (p *HTTPPusher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
