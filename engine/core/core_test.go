package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	for _, lvl := range []LogLevel{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel} {
		parsed, err := ParseLogLevel(lvl.String())
		require.NoError(t, err)
		assert.Equal(t, lvl, parsed)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	prev := GetLogLevel()
	defer SetLogLevel(prev)

	SetLogLevel(WarnLevel)
	assert.Equal(t, WarnLevel, GetLogLevel())
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := &Clock{now: func() time.Time { return now }}

	c.Update()
	assert.Zero(t, c.Elapsed(), "a clock that never started does not move")

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)
}

func TestMetricsTransientCounters(t *testing.T) {
	before := MetricsTransientGrowths()
	MetricsTransientGrowth()
	assert.Equal(t, before+1, MetricsTransientGrowths())

	waits := MetricsTransientWaits()
	MetricsTransientWait()
	assert.Equal(t, waits+1, MetricsTransientWaits())
}

func TestMetricsAverage(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	for i := 0; i < int(AVG_COUNT); i++ {
		MetricsUpdate(0.016)
	}
	assert.InDelta(t, 16.0, MetricsFrameTime(), 1e-6)
}

func TestEventFireStopsAtHandler(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()

	var calls []string
	first, second := "first", "second"
	require.True(t, EventRegister(EVENT_CODE_RESIZED, first, func(ctx EventContext) bool {
		calls = append(calls, first)
		return ctx.Data.(*ResizeEvent).Width == 0
	}))
	require.True(t, EventRegister(EVENT_CODE_RESIZED, second, func(ctx EventContext) bool {
		calls = append(calls, second)
		return true
	}))
	assert.False(t, EventRegister(EVENT_CODE_RESIZED, first, func(EventContext) bool { return false }))

	assert.True(t, EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &ResizeEvent{Width: 640, Height: 480}}))
	assert.Equal(t, []string{first, second}, calls)

	calls = nil
	EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &ResizeEvent{}})
	assert.Equal(t, []string{first}, calls)

	assert.True(t, EventUnregister(EVENT_CODE_RESIZED, first))
	assert.False(t, EventUnregister(EVENT_CODE_RESIZED, first))
}

func TestInputKeyTransitions(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()
	require.NoError(t, InputInitialize())
	defer InputShutdown()

	pressed := 0
	EventRegister(EVENT_CODE_KEY_PRESSED, t, func(ctx EventContext) bool {
		if ctx.Data.(*KeyEvent).KeyCode == KEY_SPACE {
			pressed++
		}
		return true
	})

	require.NoError(t, InputProcessKey(KEY_SPACE, true))
	require.NoError(t, InputProcessKey(KEY_SPACE, true))
	assert.Equal(t, 1, pressed, "repeated presses fire once")
	assert.True(t, InputIsKeyDown(KEY_SPACE))
	assert.False(t, InputWasKeyDown(KEY_SPACE))

	require.NoError(t, InputUpdate(0))
	assert.True(t, InputWasKeyDown(KEY_SPACE))
	require.NoError(t, InputProcessKey(KEY_SPACE, false))
	assert.True(t, InputIsKeyUp(KEY_SPACE))
}

func TestInputMouseDeltaAndWheel(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()
	require.NoError(t, InputInitialize())
	defer InputShutdown()

	require.NoError(t, InputProcessMouseMove(100, 50))
	require.NoError(t, InputUpdate(0))
	dx, dy := InputGetMouseDelta()
	assert.Equal(t, int32(0), dx)
	assert.Equal(t, int32(0), dy)

	require.NoError(t, InputProcessMouseMove(110, 45))
	require.NoError(t, InputProcessMouseWheel(1))
	require.NoError(t, InputProcessMouseWheel(2))
	dx, dy = InputGetMouseDelta()
	assert.Equal(t, int32(10), dx)
	assert.Equal(t, int32(-5), dy)
	assert.Equal(t, int8(3), InputGetMouseWheel())

	require.NoError(t, InputUpdate(0))
	assert.Equal(t, int8(0), InputGetMouseWheel(), "wheel is per frame")

	assert.False(t, InputIsButtonDown(BUTTON_MAX_BUTTONS))
}
