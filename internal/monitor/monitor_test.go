package monitor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/poller"
	"github.com/luki/meterwatch/internal/threshold"
)

func sampleReading() meter.Reading {
	return meter.NewReading(7, meter.StatusActive, map[string]meter.Value{
		"VR": meter.Some(236), "VY": meter.Some(215), "VB": meter.Absent,
		"IR": meter.Some(45), "IY": meter.Some(20), "IB": meter.Some(22),
		"WR": meter.Some(5), "WY": meter.Some(4), "WB": meter.Some(6),
		"FRE": meter.Some(50.01),
	})
}

func newTestModel(t *testing.T, f poller.Fetcher) Model {
	t.Helper()
	ctrl := poller.New(f, poller.WithInterval(time.Hour))
	t.Cleanup(ctrl.Stop)
	m := New(context.Background(), ctrl, Options{Endpoint: "http://meter/api/dashboard", StaleAfter: 15 * time.Second})
	m.width, m.height = 160, 200
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for controller update")
	}
}

func TestViewLoading(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return meter.Reading{}, nil
	}))
	assert.Contains(t, m.View(), "Loading energy meter data")
}

func TestViewInitializing(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return meter.Reading{}, nil
	}))
	m.width = 0
	assert.Equal(t, "  Initializing...", m.View())
}

func TestViewNoData(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return meter.Reading{}, errors.New("connection refused")
	}))
	m.ctrl.Start(context.Background())
	waitSignal(t, m.ctrl.Updates())

	m = update(t, m, updateMsg{})
	require.Equal(t, poller.Error, m.state.Phase)

	view := m.View()
	assert.Contains(t, view, "No Data Available")
	assert.Contains(t, view, "Unable to fetch energy meter data")
}

func TestViewPanel(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return sampleReading(), nil
	}))
	m.ctrl.Start(context.Background())
	waitSignal(t, m.ctrl.Updates())

	m = update(t, m, updateMsg{})
	require.Equal(t, poller.Ready, m.state.Phase)

	view := m.View()
	for _, want := range []string{
		"Slave ID: 7",
		"active",
		"CRITICAL",
		"Voltage Parameters",
		"Current Parameters",
		"Power Parameters",
		"System Parameters",
		"236.00 V",
		"N/A",
		"Avg Voltage",
		"225.50 V",
		"15.00 kW",
		"50.01 Hz",
	} {
		assert.Contains(t, view, want)
	}
	assert.NotContains(t, view, "STALE")
}

func TestRecordOncePerReading(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return sampleReading(), nil
	}))
	m.ctrl.Start(context.Background())
	waitSignal(t, m.ctrl.Updates())

	m = update(t, m, updateMsg{})
	m = update(t, m, updateMsg{})

	vr := m.history.Get("VR")
	require.NotNil(t, vr)
	assert.Len(t, vr.Points, 1)
	assert.Nil(t, m.history.Get("VB"), "absent values are not recorded")
	assert.Nil(t, m.history.Get(meter.FieldSlave))
}

func TestStaleTag(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return sampleReading(), nil
	}))
	m.ctrl.Start(context.Background())
	waitSignal(t, m.ctrl.Updates())
	m = update(t, m, updateMsg{})

	m = update(t, m, clockMsg(m.state.LastSuccess.Add(time.Minute)))
	view := m.View()
	assert.Contains(t, view, "STALE")
	assert.Contains(t, view, "ago")
}

func TestPauseStopsController(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return sampleReading(), nil
	}))
	m.ctrl.Start(context.Background())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.True(t, m.paused)
	assert.False(t, m.ctrl.Running())
	assert.True(t, strings.Contains(m.View(), "PAUSED"))

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.False(t, m.paused)
	assert.True(t, m.ctrl.Running())
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		return sampleReading(), nil
	}))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWaitForUpdateEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan struct{})
	cmd := waitForUpdate(ctx, ch)

	got := make(chan tea.Msg, 1)
	go func() { got <- cmd() }()

	cancel()
	select {
	case msg := <-got:
		assert.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after cancel")
	}

	ch2 := make(chan struct{}, 1)
	ch2 <- struct{}{}
	assert.Equal(t, updateMsg{}, waitForUpdate(context.Background(), ch2)())
}

func TestTrendMarkerAfterRecovery(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, poller.FetcherFunc(func(context.Context) (meter.Reading, error) {
		if calls.Add(1) == 1 {
			return sampleReading(), nil
		}
		return meter.NewReading(7, meter.StatusActive, map[string]meter.Value{
			"VR": meter.Some(236), "VY": meter.Some(235), "VB": meter.Some(234),
			"IR": meter.Some(20), "IY": meter.Some(20), "IB": meter.Some(22),
			"FRE": meter.Some(50),
		}), nil
	}))
	m.ctrl.Start(context.Background())
	waitSignal(t, m.ctrl.Updates())
	m = update(t, m, updateMsg{})
	assert.NotContains(t, m.View(), "!", "no excursion beyond the current value yet")

	require.True(t, m.ctrl.Refresh())
	waitSignal(t, m.ctrl.Updates())
	m = update(t, m, updateMsg{})

	assert.Equal(t, threshold.Critical, m.history.Get("VY").Worst())
	assert.Contains(t, m.View(), "!")
}
