package netstat

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Prober turns periodic HTTP checks into a connectivity feed.
type Prober struct {
	url    string
	period time.Duration
	client *http.Client
	logger *slog.Logger
}

// NewProber creates a prober for url. Each check gives up after timeout.
func NewProber(url string, period, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		url:    url,
		period: period,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Check performs one probe. Any response below 500 counts as reachable.
func (p *Prober) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("connectivity probe failed", "url", p.url, "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// Run probes immediately and then every period, sending one event per probe.
// The returned channel is closed when ctx is done.
func (p *Prober) Run(ctx context.Context) <-chan Event {
	feed := make(chan Event, 1)
	go func() {
		defer close(feed)

		ticker := time.NewTicker(p.period)
		defer ticker.Stop()

		for {
			ev := Event{Connected: p.Check(ctx)}
			select {
			case feed <- ev:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return feed
}
