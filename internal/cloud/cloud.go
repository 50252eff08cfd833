// Package cloud pushes the full reading log to a remote endpoint.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vitaminmoo/blesync/internal/notify"
	"github.com/vitaminmoo/blesync/internal/reading"
)

// ErrSync marks a failed push.
var ErrSync = errors.New("sync failed")

// Payload is the body of every push.
type Payload struct {
	Data reading.Log `json:"data"`
}

// FormatPayload encodes log as {"data": [...]}.
func FormatPayload(log reading.Log) ([]byte, error) {
	if log == nil {
		log = reading.Log{}
	}
	return json.Marshal(Payload{Data: log})
}

// Pusher delivers one encoded payload to the remote endpoint.
type Pusher interface {
	// Push sends payload once. It does not retry.
	Push(ctx context.Context, payload []byte) error
	// Close releases the transport.
	Close() error
}

// Client runs sync attempts and reports each outcome as an alert.
type Client struct {
	pusher   Pusher
	notifier notify.Notifier
	logger   *slog.Logger

	attempts  atomic.Int64
	successes atomic.Int64
}

// NewClient creates a sync client.
func NewClient(p Pusher, n notify.Notifier, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pusher: p, notifier: n, logger: logger}
}

// Sync sends the entire log in one request. Success and failure each raise
// one alert. A failure leaves nothing to clean up: the caller still holds the
// log in storage and the next sync sends it again.
func (c *Client) Sync(ctx context.Context, log reading.Log) error {
	c.attempts.Add(1)

	payload, err := FormatPayload(log)
	if err != nil {
		return c.fail(fmt.Errorf("%w: encode payload: %w", ErrSync, err))
	}
	if err := c.pusher.Push(ctx, payload); err != nil {
		return c.fail(fmt.Errorf("%w: %w", ErrSync, err))
	}

	c.successes.Add(1)
	c.logger.Info("synced readings", "count", len(log))
	c.notify(notify.SyncSucceeded)
	return nil
}

// Attempts returns how many syncs were attempted.
func (c *Client) Attempts() int64 {
	return c.attempts.Load()
}

// Successes returns how many syncs succeeded.
func (c *Client) Successes() int64 {
	return c.successes.Load()
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.pusher.Close()
}

func (c *Client) fail(err error) error {
	c.logger.Error("error syncing data to the cloud", "error", err)
	c.notify(notify.SyncFailed)
	return err
}

func (c *Client) notify(a notify.Alert) {
	if c.notifier != nil {
		c.notifier.Notify(a)
	}
}
