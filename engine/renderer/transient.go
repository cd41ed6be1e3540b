package renderer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/marionette/engine/containers"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

// FrameToken identifies a submitted frame. Tokens increase monotonically from 1.
type FrameToken uint64

type RegionState uint8

const (
	RegionFree RegionState = iota
	RegionClaimed
	RegionInFlight
)

func (s RegionState) String() string {
	switch s {
	case RegionFree:
		return "free"
	case RegionClaimed:
		return "claimed"
	case RegionInFlight:
		return "in-flight"
	}
	return "invalid"
}

// Region is a slice of a transient backing buffer.
type Region struct {
	Buffer *metadata.RenderBuffer
	Offset uint64
	Size   uint64

	state RegionState
	frame FrameToken
	owner *TransientAllocator
}

func (r *Region) State() RegionState {
	return r.state
}

// Frame is the token the region was last submitted with, or 0.
func (r *Region) Frame() FrameToken {
	return r.frame
}

// Write copies data to the start of the region.
func (r *Region) Write(data []byte) error {
	return r.WriteAt(0, data)
}

// WriteAt copies data into the region. Only a claimed region can be written.
func (r *Region) WriteAt(offset uint64, data []byte) error {
	if r.state != RegionClaimed {
		return fmt.Errorf("%w: write to %s region at offset %d of %q", core.ErrRegionState, r.state, r.Offset, r.Buffer.Label)
	}
	if offset+uint64(len(data)) > r.Size {
		return fmt.Errorf("write of %d bytes at %d overflows region of %d bytes", len(data), offset, r.Size)
	}
	return r.owner.device.WriteBuffer(r.Buffer, r.Offset+offset, data)
}

type inFlightFrame struct {
	token   FrameToken
	signal  metadata.FrameSignal
	regions []*Region
}

type TransientStats struct {
	Regions        int
	Free           int
	Claimed        int
	InFlight       int
	InFlightFrames int
	Growths        uint64
	Waits          uint64
	BackingBytes   uint64
}

type TransientConfig struct {
	// Depth is the number of frames that may be in flight at once.
	Depth int
	// Alignment is the minimum dynamic offset alignment of the device.
	Alignment uint64
	// MaxRegions caps growth. Once reached, Claim waits on the GPU instead.
	MaxRegions int
	// Timeout bounds every wait on a frame signal.
	Timeout time.Duration
}

// TransientAllocator hands out per-draw regions of device memory and takes
// them back only once the frame that read them has completed on the GPU.
//
// It belongs to the thread recording commands and is not safe for
// concurrent use; recording from several threads needs one allocator each.
type TransientAllocator struct {
	device BufferAllocator
	cfg    TransientConfig

	free     map[uint64][]*Region
	claimed  []*Region
	inFlight *containers.RingQueue[*inFlightFrame]
	spare    [][]*Region

	backings  []*metadata.RenderBuffer
	regions   int
	lastToken FrameToken
	stats     TransientStats
}

func NewTransientAllocator(device BufferAllocator, cfg TransientConfig) (*TransientAllocator, error) {
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("transient allocator depth must be at least 1, got %d", cfg.Depth)
	}
	if cfg.Alignment == 0 {
		cfg.Alignment = 256
	}
	if cfg.MaxRegions < cfg.Depth {
		return nil, fmt.Errorf("transient allocator max regions %d is below depth %d", cfg.MaxRegions, cfg.Depth)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &TransientAllocator{
		device:   device,
		cfg:      cfg,
		free:     make(map[uint64][]*Region),
		inFlight: containers.NewRingQueue[*inFlightFrame](cfg.Depth),
	}, nil
}

// Claim returns a writable region of at least size bytes. When no region is
// free and the pool is at capacity it blocks on the oldest in-flight frame.
func (ta *TransientAllocator) Claim(size uint64) (*Region, error) {
	return ta.claim(size, true)
}

// TryClaim is Claim without the wait; it returns core.ErrWouldBlock instead.
func (ta *TransientAllocator) TryClaim(size uint64) (*Region, error) {
	return ta.claim(size, false)
}

func (ta *TransientAllocator) claim(size uint64, block bool) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("cannot claim an empty transient region")
	}
	aligned := math.AlignUp(size, ta.cfg.Alignment)

	for {
		if r := ta.popFree(aligned); r != nil {
			r.state = RegionClaimed
			ta.claimed = append(ta.claimed, r)
			return r, nil
		}

		recycled, err := ta.RecycleCompleted()
		if err != nil {
			return nil, err
		}
		if recycled > 0 {
			continue
		}

		if ta.regions+ta.cfg.Depth <= ta.cfg.MaxRegions {
			if err := ta.grow(aligned); err != nil {
				return nil, err
			}
			continue
		}

		if ta.inFlight.IsEmpty() {
			err := fmt.Errorf("%w: %d regions claimed this frame, %d free in other sizes, max %d",
				core.ErrPoolExhausted, len(ta.claimed), ta.freeCount(), ta.cfg.MaxRegions)
			core.LogError(err.Error())
			return nil, err
		}
		if !block {
			return nil, core.ErrWouldBlock
		}
		if err := ta.waitOldest(); err != nil {
			return nil, err
		}
	}
}

func (ta *TransientAllocator) popFree(size uint64) *Region {
	list := ta.free[size]
	if len(list) == 0 {
		return nil
	}
	r := list[len(list)-1]
	ta.free[size] = list[:len(list)-1]
	return r
}

// grow allocates one backing buffer of size×depth and splits it into depth regions.
func (ta *TransientAllocator) grow(size uint64) error {
	total := size * uint64(ta.cfg.Depth)
	label := fmt.Sprintf("transient-%d-%s", size, uuid.NewString())
	buf, err := ta.device.CreateBuffer(metadata.RENDERBUFFER_TYPE_TRANSIENT, total, label)
	if err != nil {
		err = fmt.Errorf("failed to grow transient pool by %d bytes: %w", total, err)
		core.LogError(err.Error())
		return err
	}
	ta.backings = append(ta.backings, buf)

	for i := 0; i < ta.cfg.Depth; i++ {
		ta.free[size] = append(ta.free[size], &Region{
			Buffer: buf,
			Offset: uint64(i) * size,
			Size:   size,
			owner:  ta,
		})
	}
	ta.regions += ta.cfg.Depth
	ta.stats.Growths++
	ta.stats.BackingBytes += total
	core.MetricsTransientGrowth()
	core.LogDebug("transient pool grew: %d regions of %d bytes in %s (total %d regions)", ta.cfg.Depth, size, label, ta.regions)
	return nil
}

// Submit tags every region claimed since the last submit with a new frame
// token bound to signal. If depth frames are already in flight it first
// waits for the oldest one; this is the render loop's only blocking point.
func (ta *TransientAllocator) Submit(signal metadata.FrameSignal) (FrameToken, error) {
	if signal == nil {
		return 0, fmt.Errorf("cannot submit a frame without a completion signal")
	}
	if ta.inFlight.IsFull() {
		if _, err := ta.RecycleCompleted(); err != nil {
			return 0, err
		}
	}
	if ta.inFlight.IsFull() {
		if err := ta.waitOldest(); err != nil {
			return 0, err
		}
	}

	ta.lastToken++
	frame := &inFlightFrame{
		token:   ta.lastToken,
		signal:  signal,
		regions: ta.claimed,
	}
	for _, r := range frame.regions {
		r.state = RegionInFlight
		r.frame = frame.token
	}
	ta.claimed = ta.takeSpare()

	if err := ta.inFlight.Enqueue(frame); err != nil {
		return 0, err
	}
	return frame.token, nil
}

func (ta *TransientAllocator) takeSpare() []*Region {
	if n := len(ta.spare); n > 0 {
		s := ta.spare[n-1]
		ta.spare = ta.spare[:n-1]
		return s
	}
	return nil
}

func (ta *TransientAllocator) waitOldest() error {
	frame, err := ta.inFlight.Peek()
	if err != nil {
		return err
	}
	ta.stats.Waits++
	core.MetricsTransientWait()
	if err := frame.signal.Wait(ta.cfg.Timeout); err != nil {
		err = fmt.Errorf("%w: frame %d did not complete within %s: %v", core.ErrDeviceLost, frame.token, ta.cfg.Timeout, err)
		core.LogError(err.Error())
		return err
	}
	ta.releaseOldest()
	return nil
}

// Recycle returns every region of every frame up to and including token to
// the free pool. Nothing is freed unless all of those frames have signaled.
func (ta *TransientAllocator) Recycle(token FrameToken) error {
	idx := -1
	for i := 0; i < ta.inFlight.Len(); i++ {
		frame, _ := ta.inFlight.At(i)
		if frame.token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", core.ErrUnknownFrame, token)
	}

	for i := 0; i <= idx; i++ {
		frame, _ := ta.inFlight.At(i)
		done, err := frame.signal.Signaled()
		if err != nil {
			return fmt.Errorf("%w: frame %d: %v", core.ErrDeviceLost, frame.token, err)
		}
		if !done {
			return fmt.Errorf("%w: frame %d", core.ErrNotSignaled, frame.token)
		}
	}

	for i := 0; i <= idx; i++ {
		ta.releaseOldest()
	}
	return nil
}

// RecycleCompleted frees the oldest frames whose signals have fired, stopping
// at the first one still executing. It returns how many frames were freed.
func (ta *TransientAllocator) RecycleCompleted() (int, error) {
	n := 0
	for !ta.inFlight.IsEmpty() {
		frame, _ := ta.inFlight.Peek()
		done, err := frame.signal.Signaled()
		if err != nil {
			err = fmt.Errorf("%w: frame %d: %v", core.ErrDeviceLost, frame.token, err)
			core.LogError(err.Error())
			return n, err
		}
		if !done {
			break
		}
		ta.releaseOldest()
		n++
	}
	return n, nil
}

func (ta *TransientAllocator) releaseOldest() {
	frame, err := ta.inFlight.Dequeue()
	if err != nil {
		return
	}
	for _, r := range frame.regions {
		r.state = RegionFree
		ta.free[r.Size] = append(ta.free[r.Size], r)
	}
	ta.spare = append(ta.spare, frame.regions[:0])
}

// WaitIdle blocks until every in-flight frame has completed.
func (ta *TransientAllocator) WaitIdle() error {
	for !ta.inFlight.IsEmpty() {
		if err := ta.waitOldest(); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases all backing buffers. The GPU must be idle.
func (ta *TransientAllocator) Destroy() {
	for _, b := range ta.backings {
		ta.device.DestroyBuffer(b)
	}
	ta.backings = nil
	ta.free = make(map[uint64][]*Region)
	ta.claimed = nil
	ta.inFlight = containers.NewRingQueue[*inFlightFrame](ta.cfg.Depth)
	ta.regions = 0
	ta.stats.BackingBytes = 0
}

func (ta *TransientAllocator) LastToken() FrameToken {
	return ta.lastToken
}

func (ta *TransientAllocator) freeCount() int {
	n := 0
	for _, l := range ta.free {
		n += len(l)
	}
	return n
}

func (ta *TransientAllocator) Stats() TransientStats {
	s := ta.stats
	s.Regions = ta.regions
	s.Free = ta.freeCount()
	s.Claimed = len(ta.claimed)
	s.InFlightFrames = ta.inFlight.Len()
	for i := 0; i < ta.inFlight.Len(); i++ {
		frame, _ := ta.inFlight.At(i)
		s.InFlight += len(frame.regions)
	}
	return s
}
