package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChanDropsWhenFull(t *testing.T) {
	c := NewChan(1)
	c.Notify(SyncSucceeded)
	c.Notify(SyncFailed)

	assert.Equal(t, SyncSucceeded, <-c.C())
	select {
	case a := <-c.C():
		t.Fatalf("unexpected alert %v", a)
	default:
	}
}

func TestRecorderAndMulti(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, &b}

	m.Notify(ConnectionFailed)
	m.Notify(SyncFailed)
	m.Notify(SyncFailed)

	assert.Len(t, a.Alerts(), 3)
	assert.Equal(t, 2, b.Count(KindSyncFailed))
	assert.Equal(t, 1, b.Count(KindConnectionFailed))
	assert.Zero(t, b.Count(KindPermissionDenied))
}

func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	n.Notify(SyncSucceeded)
	n.Notify(PermissionDenied)

	out := buf.String()
	assert.Contains(t, out, `level=INFO msg="Sync Success"`)
	assert.Contains(t, out, `level=WARN msg="Permission Denied"`)
	assert.Contains(t, out, "kind=permission_denied")
}

func TestAlertIsError(t *testing.T) {
	assert.False(t, SyncSucceeded.IsError())
	assert.True(t, SyncFailed.IsError())
	assert.True(t, ConnectionFailed.IsError())
	assert.Equal(t, "unknown", Kind(0).String())
}
