package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/blesync/internal/ble"
	"github.com/vitaminmoo/blesync/internal/gateway"
	"github.com/vitaminmoo/blesync/internal/notify"
	"github.com/vitaminmoo/blesync/internal/reading"
)

type fakeController struct {
	mu         sync.Mutex
	devices    []ble.Peripheral
	status     gateway.Status
	log        reading.Log
	scans      int
	stops      int
	connected  []string
	connectErr error
}

func (f *fakeController) StartScan(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	f.status.Scanning = true
}

func (f *fakeController) StopScan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.status.Scanning = false
}

func (f *fakeController) Devices() []ble.Peripheral {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices
}

func (f *fakeController) Connect(_ context.Context, id string) (*ble.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, id)
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	for _, p := range f.devices {
		if p.ID == id {
			f.status.State = ble.StateConnected
			f.status.Peripheral = &p
			return &ble.Session{Peripheral: p}, nil
		}
	}
	return nil, errors.New("unknown")
}

func (f *fakeController) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.State = ble.StateDisconnected
	f.status.Peripheral = nil
	return nil
}

func (f *fakeController) Status() gateway.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Readings() reading.Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.log
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func newTestModel(ctrl *fakeController) Model {
	m := NewModel(context.Background(), ctrl, nil)
	m.status.Online = true
	return m
}

func twoDevices() []ble.Peripheral {
	return []ble.Peripheral{
		{ID: "AA", Name: "Thermo"},
		{ID: "BB", Name: "Hygro"},
	}
}

func TestRefreshPullsDevices(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices()}
	m, cmd := update(t, newTestModel(ctrl), refreshMsg(time.Now()))

	assert.NotNil(t, cmd)
	assert.Len(t, m.devices, 2)
	assert.Contains(t, m.View(), "Thermo")
	assert.Contains(t, m.View(), "Hygro")
}

func TestScanKeyStartsScan(t *testing.T) {
	ctrl := &fakeController{}
	m, cmd := update(t, newTestModel(ctrl), runeKey("s"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, ctrl.scans)
	assert.True(t, m.status.Scanning)
	assert.Contains(t, m.View(), "Scanning")
}

func TestStopScanKey(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.StartScan(context.Background())
	m, _ := update(t, newTestModel(ctrl), refreshMsg(time.Now()))

	m, _ = update(t, m, runeKey("x"))
	assert.Equal(t, 1, ctrl.stops)
	assert.False(t, m.status.Scanning)
}

func TestSelectConnectsToHighlightedDevice(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices()}
	m, _ := update(t, newTestModel(ctrl), refreshMsg(time.Now()))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.connecting)

	msg := connectCmd(context.Background(), ctrl, m.devices[m.cursor].ID)()
	m, _ = update(t, m, msg)

	assert.Equal(t, []string{"BB"}, ctrl.connected)
	assert.False(t, m.connecting)
	assert.Equal(t, ViewConnected, m.view)
	assert.Contains(t, m.View(), "Hygro")
}

func TestConnectFailureShowsError(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices(), connectErr: ble.ErrConnectionFailed}
	m, _ := update(t, newTestModel(ctrl), refreshMsg(time.Now()))

	m, _ = update(t, m, connectCmd(context.Background(), ctrl, "AA")())
	assert.Equal(t, ViewDevices, m.view)
	assert.Contains(t, m.errorMsg, "Connection failed")
}

func TestConnectedViewShowsCurrentValue(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices()}
	_, err := ctrl.Connect(context.Background(), "AA")
	require.NoError(t, err)
	latest := reading.New(73.25, time.Now())
	ctrl.status.Latest = &latest
	ctrl.status.Stored = 12

	m := newTestModel(ctrl)
	m.view = ViewConnected
	m, _ = update(t, m, refreshMsg(time.Now()))

	out := m.View()
	assert.Contains(t, out, "73.25")
	assert.Contains(t, out, "12 readings")
}

func TestPeripheralDropReturnsToDeviceList(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices()}
	_, err := ctrl.Connect(context.Background(), "AA")
	require.NoError(t, err)

	m := newTestModel(ctrl)
	m.view = ViewConnected
	m, _ = update(t, m, refreshMsg(time.Now()))
	require.Equal(t, ViewConnected, m.view)

	require.NoError(t, ctrl.Disconnect())
	m, _ = update(t, m, refreshMsg(time.Now()))
	assert.Equal(t, ViewDevices, m.view)
	assert.Equal(t, "Device disconnected", m.errorMsg)
}

func TestDisconnectKey(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices()}
	_, err := ctrl.Connect(context.Background(), "AA")
	require.NoError(t, err)

	m := newTestModel(ctrl)
	m, _ = update(t, m, refreshMsg(time.Now()))
	m.view = ViewConnected

	m, cmd := update(t, m, runeKey("d"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, ViewDevices, m.view)
	assert.Equal(t, ble.StateDisconnected, m.status.State)
}

func TestDataViewListsReadings(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ctrl := &fakeController{log: reading.Log{reading.New(1.5, t0), reading.New(2.5, t0.Add(5*time.Second))}}
	m, _ := update(t, newTestModel(ctrl), refreshMsg(time.Now()))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, ViewData, m.view)
	out := m.View()
	assert.Contains(t, out, "1.50")
	assert.Contains(t, out, "2.50")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewDevices, m.view)
}

func TestAlertsQueueAndDismiss(t *testing.T) {
	m := newTestModel(&fakeController{})
	m, _ = update(t, m, alertMsg(notify.SyncFailed))
	m, _ = update(t, m, alertMsg(notify.SyncSucceeded))

	require.NotNil(t, m.alert)
	assert.Equal(t, notify.KindSyncFailed, m.alert.Kind)
	assert.Contains(t, m.View(), "Sync Failed")

	// Keys other than dismiss are swallowed by the modal.
	m, cmd := update(t, m, runeKey("s"))
	assert.Nil(t, cmd)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.alert)
	assert.Equal(t, notify.KindSyncSucceeded, m.alert.Kind)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.alert)
}

func TestWaitForAlertCmd(t *testing.T) {
	assert.Nil(t, waitForAlertCmd(nil))

	ch := notify.NewChan(1)
	ch.Notify(notify.PermissionDenied)
	msg := waitForAlertCmd(ch.C())()
	assert.Equal(t, alertMsg(notify.PermissionDenied), msg)
}

func TestOfflineIndicator(t *testing.T) {
	m := newTestModel(&fakeController{})
	assert.Contains(t, m.View(), "Online")

	m.status.Online = false
	assert.Contains(t, m.View(), "Offline")
}

func TestStatusBarShowsStorageAndSync(t *testing.T) {
	ctrl := &fakeController{devices: twoDevices()}
	m, _ := update(t, newTestModel(ctrl), refreshMsg(time.Now()))
	m.status.Stored = 42

	out := m.View()
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "never")

	m.status.LastSync = &gateway.SyncResult{At: time.Now(), Count: 42, Err: errors.New("timeout")}
	assert.Contains(t, m.View(), "failed")

	m.view = ViewData
	assert.Contains(t, m.View(), "stored")
}

func TestQuit(t *testing.T) {
	_, cmd := update(t, newTestModel(&fakeController{}), runeKey("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
