package renderer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

type fakeSignal struct {
	fired   bool
	err     error
	onWait  func(*fakeSignal)
	waits   int
	timeout time.Duration
}

func (s *fakeSignal) Signaled() (bool, error) {
	return s.fired, s.err
}

func (s *fakeSignal) Wait(timeout time.Duration) error {
	s.waits++
	s.timeout = timeout
	if s.onWait != nil {
		s.onWait(s)
	}
	if !s.fired {
		return metadata.ErrSignalTimeout
	}
	return nil
}

type fakeBuffers struct {
	created   []*metadata.RenderBuffer
	destroyed int
	writes    int
	failNext  bool
}

func (f *fakeBuffers) CreateBuffer(kind metadata.RenderBufferType, size uint64, label string) (*metadata.RenderBuffer, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("out of device memory")
	}
	b := &metadata.RenderBuffer{RenderBufferType: kind, TotalSize: size, Label: label, InternalData: make([]byte, size)}
	f.created = append(f.created, b)
	return b, nil
}

func (f *fakeBuffers) WriteBuffer(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	f.writes++
	copy(buffer.InternalData.([]byte)[offset:], data)
	return nil
}

func (f *fakeBuffers) DestroyBuffer(buffer *metadata.RenderBuffer) {
	f.destroyed++
}

func newAllocator(t *testing.T, depth, maxRegions int) (*TransientAllocator, *fakeBuffers) {
	t.Helper()
	dev := &fakeBuffers{}
	ta, err := NewTransientAllocator(dev, TransientConfig{
		Depth:      depth,
		Alignment:  256,
		MaxRegions: maxRegions,
		Timeout:    time.Second,
	})
	require.NoError(t, err)
	return ta, dev
}

func TestClaimAlignsAndGrows(t *testing.T) {
	ta, dev := newAllocator(t, 3, 30)

	r, err := ta.Claim(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), r.Size)
	assert.Equal(t, RegionClaimed, r.State())
	require.Len(t, dev.created, 1)
	assert.Equal(t, uint64(256*3), dev.created[0].TotalSize)
	assert.Equal(t, metadata.RENDERBUFFER_TYPE_TRANSIENT, dev.created[0].RenderBufferType)

	stats := ta.Stats()
	assert.Equal(t, 3, stats.Regions)
	assert.Equal(t, 2, stats.Free)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, uint64(1), stats.Growths)

	// The rest of the backing is handed out before growing again.
	r2, err := ta.Claim(256)
	require.NoError(t, err)
	assert.Same(t, r.Buffer, r2.Buffer)
	assert.NotEqual(t, r.Offset, r2.Offset)
	assert.Zero(t, r2.Offset%256)

	_, err = ta.Claim(300)
	require.NoError(t, err)
	assert.Len(t, dev.created, 2, "a new size class needs its own backing")
	assert.Equal(t, uint64(2), ta.Stats().Growths)
}

func TestPoolOfThreeWouldBlock(t *testing.T) {
	ta, dev := newAllocator(t, 3, 3)

	var claimed []*Region
	for i := 0; i < 3; i++ {
		r, err := ta.Claim(64)
		require.NoError(t, err)
		claimed = append(claimed, r)
	}
	f1 := &fakeSignal{}
	token, err := ta.Submit(f1)
	require.NoError(t, err)
	for _, r := range claimed {
		assert.Equal(t, RegionInFlight, r.State())
		assert.Equal(t, token, r.Frame())
	}

	_, err = ta.TryClaim(64)
	assert.ErrorIs(t, err, core.ErrWouldBlock)
	assert.Len(t, dev.created, 1, "no growth past the cap")

	f1.fired = true
	r, err := ta.TryClaim(64)
	require.NoError(t, err)
	assert.Contains(t, claimed, r, "a recycled region is reused")
}

func TestExhaustedPoolWithNothingInFlight(t *testing.T) {
	ta, _ := newAllocator(t, 2, 4)

	_, err := ta.Claim(64)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = ta.Claim(300)
		require.NoError(t, err)
	}
	require.Equal(t, 1, ta.Stats().Free, "one small region is still free")

	_, err = ta.Claim(300)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	assert.NotErrorIs(t, err, core.ErrDeviceLost)
	_, err = ta.TryClaim(300)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
}

func TestClaimBlocksUntilOldestFrameCompletes(t *testing.T) {
	ta, _ := newAllocator(t, 2, 2)

	for i := 0; i < 2; i++ {
		_, err := ta.Claim(64)
		require.NoError(t, err)
	}
	f1 := &fakeSignal{onWait: func(s *fakeSignal) { s.fired = true }}
	_, err := ta.Submit(f1)
	require.NoError(t, err)

	r, err := ta.Claim(64)
	require.NoError(t, err)
	assert.Equal(t, 1, f1.waits)
	assert.Equal(t, time.Second, f1.timeout)
	assert.Equal(t, RegionClaimed, r.State())
	assert.Equal(t, uint64(1), ta.Stats().Waits)
}

func TestTimedOutWaitIsDeviceLost(t *testing.T) {
	ta, _ := newAllocator(t, 1, 1)
	_, err := ta.Claim(64)
	require.NoError(t, err)
	_, err = ta.Submit(&fakeSignal{})
	require.NoError(t, err)

	_, err = ta.Claim(64)
	assert.ErrorIs(t, err, core.ErrDeviceLost)

	ta2, _ := newAllocator(t, 1, 4)
	_, err = ta2.Submit(&fakeSignal{err: errors.New("driver reset")})
	require.NoError(t, err)
	_, err = ta2.RecycleCompleted()
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestSubmitAppliesBackpressure(t *testing.T) {
	ta, _ := newAllocator(t, 2, 16)

	f1 := &fakeSignal{onWait: func(s *fakeSignal) { s.fired = true }}
	f2 := &fakeSignal{}
	_, err := ta.Submit(f1)
	require.NoError(t, err)
	_, err = ta.Submit(f2)
	require.NoError(t, err)
	assert.Equal(t, 2, ta.Stats().InFlightFrames)

	_, err = ta.Submit(&fakeSignal{})
	require.NoError(t, err)
	assert.Equal(t, 1, f1.waits, "the third frame waits for the first")
	assert.Zero(t, f2.waits)
	assert.Equal(t, 2, ta.Stats().InFlightFrames)
}

func TestRecycleRequiresSignal(t *testing.T) {
	ta, _ := newAllocator(t, 3, 30)

	r1, err := ta.Claim(64)
	require.NoError(t, err)
	f1 := &fakeSignal{}
	t1, err := ta.Submit(f1)
	require.NoError(t, err)

	r2, err := ta.Claim(64)
	require.NoError(t, err)
	f2 := &fakeSignal{}
	t2, err := ta.Submit(f2)
	require.NoError(t, err)

	assert.ErrorIs(t, ta.Recycle(t1), core.ErrNotSignaled)
	assert.Equal(t, RegionInFlight, r1.State())

	// Frame 2 is done but frame 1 is not: nothing moves.
	f2.fired = true
	assert.ErrorIs(t, ta.Recycle(t2), core.ErrNotSignaled)
	assert.Equal(t, RegionInFlight, r2.State())

	f1.fired = true
	require.NoError(t, ta.Recycle(t2))
	assert.Equal(t, RegionFree, r1.State())
	assert.Equal(t, RegionFree, r2.State())
	assert.Zero(t, ta.Stats().InFlightFrames)

	assert.ErrorIs(t, ta.Recycle(t2), core.ErrUnknownFrame)
}

func TestWriteRequiresClaimedRegion(t *testing.T) {
	ta, dev := newAllocator(t, 2, 8)
	r, err := ta.Claim(16)
	require.NoError(t, err)

	require.NoError(t, r.Write([]byte("skinning")))
	assert.Equal(t, "skinning", string(r.Buffer.InternalData.([]byte)[r.Offset:r.Offset+8]))
	assert.Error(t, r.WriteAt(250, make([]byte, 10)), "overflow")

	f := &fakeSignal{}
	_, err = ta.Submit(f)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Write([]byte{1}), core.ErrRegionState)

	f.fired = true
	_, err = ta.RecycleCompleted()
	require.NoError(t, err)
	assert.ErrorIs(t, r.Write([]byte{1}), core.ErrRegionState)
	assert.Equal(t, 1, dev.writes)
}

func TestGrowthFailurePropagates(t *testing.T) {
	ta, dev := newAllocator(t, 2, 8)
	dev.failNext = true
	_, err := ta.Claim(64)
	assert.Error(t, err)
	assert.Zero(t, ta.Stats().Regions)
}

func TestExhaustedWithinOneFrame(t *testing.T) {
	ta, _ := newAllocator(t, 2, 2)
	for i := 0; i < 2; i++ {
		_, err := ta.Claim(64)
		require.NoError(t, err)
	}
	_, err := ta.Claim(64)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrWouldBlock)
}

// Simulates frames where the GPU lags a few frames behind and checks that no
// region is ever handed out while a frame that read it is still executing.
func TestNoAliasingAcrossFrames(t *testing.T) {
	const (
		depth     = 3
		frames    = 200
		perFrame  = 4
		gpuLag    = 2
		maxRegion = 64
	)
	ta, _ := newAllocator(t, depth, maxRegion)

	var signals []*fakeSignal
	owner := map[*Region]int{}
	retire := func(upTo int) {
		for i := 0; i <= upTo && i < len(signals); i++ {
			signals[i].fired = true
		}
	}

	for f := 0; f < frames; f++ {
		retire(f - 1 - gpuLag)

		for d := 0; d < perFrame; d++ {
			r, err := ta.Claim(uint64(64 * (1 + d%2)))
			require.NoError(t, err)

			if prev, seen := owner[r]; seen {
				require.True(t, signals[prev].fired,
					fmt.Sprintf("frame %d reused a region of frame %d before it completed", f, prev))
			}
			owner[r] = f
			require.NoError(t, r.Write([]byte{byte(f)}))
		}

		s := &fakeSignal{}
		s.onWait = func(s *fakeSignal) { s.fired = true }
		signals = append(signals, s)
		_, err := ta.Submit(s)
		require.NoError(t, err)

		assert.LessOrEqual(t, ta.Stats().InFlightFrames, depth)
		assert.LessOrEqual(t, ta.Stats().InFlight, depth*perFrame)
	}

	stats := ta.Stats()
	assert.LessOrEqual(t, stats.Regions, maxRegion)
	assert.Equal(t, stats.Regions, stats.Free+stats.Claimed+stats.InFlight)
	assert.Less(t, stats.Growths, uint64(10), "steady state reuses regions")
}

func TestDestroyReleasesBackings(t *testing.T) {
	ta, dev := newAllocator(t, 2, 8)
	_, err := ta.Claim(64)
	require.NoError(t, err)
	_, err = ta.Claim(512)
	require.NoError(t, err)

	ta.Destroy()
	assert.Equal(t, 2, dev.destroyed)
	assert.Zero(t, ta.Stats().Regions)
}

func TestNewTransientAllocatorValidates(t *testing.T) {
	_, err := NewTransientAllocator(&fakeBuffers{}, TransientConfig{Depth: 0, MaxRegions: 4})
	assert.Error(t, err)
	_, err = NewTransientAllocator(&fakeBuffers{}, TransientConfig{Depth: 3, MaxRegions: 2})
	assert.Error(t, err)
}
