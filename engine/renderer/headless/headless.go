// Package headless is a render device that records commands in memory.
// Submitted frames complete after a configurable number of later frames,
// which makes it a stand-in for an asynchronous GPU in tests and CI runs.
package headless

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

var ErrInFlightWrite = errors.New("write overlaps a range still read by an in-flight frame")

type Op int

const (
	OpBindPipeline Op = iota
	OpBindBufferRange
	OpBindTextures
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpDrawIndexed
)

type Command struct {
	Op       Op
	Pipeline *metadata.Pipeline
	Slot     uint32
	Buffer   *metadata.RenderBuffer
	Offset   uint64
	Size     uint64
	Textures []*metadata.Texture

	IndexCount    uint32
	FirstIndex    uint32
	InstanceCount uint32
}

type byteRange struct {
	buffer      *metadata.RenderBuffer
	offset, end uint64
}

// Signal fires when the simulated GPU retires its frame.
type Signal struct {
	device *Device
	frame  uint64
	fired  bool
	reads  []byteRange
}

func (s *Signal) Signaled() (bool, error) {
	if s.device.lost {
		return false, core.ErrDeviceLost
	}
	return s.fired, nil
}

// Wait retires every frame up to this one, as a real GPU eventually would.
func (s *Signal) Wait(timeout time.Duration) error {
	if s.device.lost {
		return metadata.ErrSignalTimeout
	}
	s.device.retireThrough(s.frame)
	return nil
}

// DefaultKeep is how many submitted frames a new Device remembers.
const DefaultKeep = 64

type Device struct {
	// Latency is how many later EndFrame calls it takes before a frame completes.
	Latency int
	// Keep bounds the frames returned by Frames. Older frames are dropped.
	Keep int

	framesInFlight uint32
	alignment      uint64
	width, height  uint32
	lost           bool

	frame    uint64
	inFrame  bool
	commands []Command
	frames   [][]Command
	reads    []byteRange
	pending  []*Signal

	pipeline *metadata.Pipeline
	bound    map[uint32]byteRange
}

func New(latency int) *Device {
	return &Device{
		Latency:   latency,
		Keep:      DefaultKeep,
		alignment: 256,
		bound:     make(map[uint32]byteRange),
	}
}

func (d *Device) Initialize(appName string, cfg *config.RendererConfig, width, height uint32) error {
	d.framesInFlight = cfg.FramesInFlight
	if cfg.UniformAlignment > 0 {
		d.alignment = cfg.UniformAlignment
	}
	d.width, d.height = width, height
	core.LogInfo("headless device ready for %s (%dx%d, latency %d)", appName, width, height, d.Latency)
	return nil
}

func (d *Device) Shutdown() error {
	d.retireThrough(d.frame)
	return nil
}

func (d *Device) Resized(width, height uint32) error {
	d.width, d.height = width, height
	return nil
}

func (d *Device) FramesInFlight() uint32 {
	return d.framesInFlight
}

func (d *Device) UniformAlignment() uint64 {
	return d.alignment
}

// Lose makes every signal fail from now on.
func (d *Device) Lose() {
	d.lost = true
}

func (d *Device) BeginFrame(deltaTime float64) (bool, error) {
	if d.lost {
		return false, core.ErrDeviceLost
	}
	if d.width == 0 || d.height == 0 {
		return false, nil
	}
	d.inFrame = true
	d.commands = nil
	d.reads = nil
	d.pipeline = nil
	d.bound = make(map[uint32]byteRange)
	return true, nil
}

func (d *Device) EndFrame(deltaTime float64) (metadata.FrameSignal, error) {
	if !d.inFrame {
		return nil, fmt.Errorf("EndFrame without BeginFrame")
	}
	d.inFrame = false
	d.frame++
	d.frames = append(d.frames, d.commands)
	if d.Keep > 0 && len(d.frames) > d.Keep {
		drop := len(d.frames) - d.Keep
		clear(d.frames[:drop])
		d.frames = d.frames[drop:]
	}

	s := &Signal{device: d, frame: d.frame, reads: d.reads}
	d.reads = nil
	d.pending = append(d.pending, s)
	if int(d.frame) > d.Latency {
		d.retireThrough(d.frame - uint64(d.Latency))
	}
	return s, nil
}

func (d *Device) retireThrough(frame uint64) {
	n := 0
	for _, s := range d.pending {
		if s.frame <= frame {
			s.fired = true
			n++
			continue
		}
		break
	}
	d.pending = d.pending[n:]
}

// Frames returns the commands of the last Keep submitted frames, oldest
// first.
func (d *Device) Frames() [][]Command {
	return d.frames
}

// FrameCount is the number of frames submitted since creation.
func (d *Device) FrameCount() uint64 {
	return d.frame
}

// Pending is the number of submitted frames not yet retired.
func (d *Device) Pending() int {
	return len(d.pending)
}

func (d *Device) CreateBuffer(kind metadata.RenderBufferType, size uint64, label string) (*metadata.RenderBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", label)
	}
	return &metadata.RenderBuffer{
		RenderBufferType: kind,
		TotalSize:        size,
		Label:            label,
		InternalData:     make([]byte, size),
	}, nil
}

// WriteBuffer fails if the target range is still read by a pending frame.
func (d *Device) WriteBuffer(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	mem, ok := buffer.InternalData.([]byte)
	if !ok {
		return fmt.Errorf("buffer %q was not created by this device", buffer.Label)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(mem)) {
		return fmt.Errorf("write [%d,%d) past the end of %q (%d bytes)", offset, end, buffer.Label, len(mem))
	}
	for _, s := range d.pending {
		if r, hit := overlaps(s.reads, buffer, offset, end); hit {
			return fmt.Errorf("%w: %q [%d,%d) read by frame %d at [%d,%d)", ErrInFlightWrite, buffer.Label, offset, end, s.frame, r.offset, r.end)
		}
	}
	if r, hit := overlaps(d.reads, buffer, offset, end); hit {
		return fmt.Errorf("%w: %q [%d,%d) already read this frame at [%d,%d)", ErrInFlightWrite, buffer.Label, offset, end, r.offset, r.end)
	}
	copy(mem[offset:end], data)
	return nil
}

func overlaps(reads []byteRange, buffer *metadata.RenderBuffer, offset, end uint64) (byteRange, bool) {
	for _, r := range reads {
		if r.buffer == buffer && offset < r.end && r.offset < end {
			return r, true
		}
	}
	return byteRange{}, false
}

// Contents returns the bytes of a buffer created by this device.
func (d *Device) Contents(buffer *metadata.RenderBuffer) []byte {
	mem, _ := buffer.InternalData.([]byte)
	return mem
}

func (d *Device) DestroyBuffer(buffer *metadata.RenderBuffer) {
	buffer.InternalData = nil
}

func (d *Device) CreateTexture(texture *metadata.Texture, pixels []uint8) error {
	if want := texture.ByteSize(); uint64(len(pixels)) != want {
		return fmt.Errorf("texture %q expects %d bytes of RGBA8, got %d", texture.Name, want, len(pixels))
	}
	texture.InternalData = append([]uint8(nil), pixels...)
	texture.Generation++
	return nil
}

func (d *Device) DestroyTexture(texture *metadata.Texture) {
	texture.InternalData = nil
}

func (d *Device) CreatePipeline(cfg *metadata.PipelineConfig) (*metadata.Pipeline, error) {
	if cfg.VertexFormat == nil {
		return nil, fmt.Errorf("pipeline %q has no vertex format", cfg.Name)
	}
	return &metadata.Pipeline{Name: cfg.Name, Config: cfg}, nil
}

func (d *Device) DestroyPipeline(pipeline *metadata.Pipeline) {}

func (d *Device) record(c Command) error {
	if !d.inFrame {
		return fmt.Errorf("command recorded outside of a frame")
	}
	d.commands = append(d.commands, c)
	return nil
}

func (d *Device) BindPipeline(pipeline *metadata.Pipeline) error {
	d.pipeline = pipeline
	return d.record(Command{Op: OpBindPipeline, Pipeline: pipeline})
}

func (d *Device) BindBufferRange(slot metadata.BindingSlot, buffer *metadata.RenderBuffer, offset, size uint64) error {
	d.bound[uint32(slot)] = byteRange{buffer: buffer, offset: offset, end: offset + size}
	return d.record(Command{Op: OpBindBufferRange, Slot: uint32(slot), Buffer: buffer, Offset: offset, Size: size})
}

func (d *Device) BindTextures(textures []*metadata.Texture) error {
	return d.record(Command{Op: OpBindTextures, Textures: textures})
}

func (d *Device) BindVertexBuffer(slot uint32, buffer *metadata.RenderBuffer, offset uint64) error {
	return d.record(Command{Op: OpBindVertexBuffer, Slot: slot, Buffer: buffer, Offset: offset})
}

func (d *Device) BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64) error {
	return d.record(Command{Op: OpBindIndexBuffer, Buffer: buffer, Offset: offset})
}

// DrawIndexed marks every bound buffer range as read by the current frame.
func (d *Device) DrawIndexed(indexCount, firstIndex, instanceCount uint32) error {
	if d.pipeline == nil {
		return fmt.Errorf("draw without a bound pipeline")
	}
	for _, r := range d.bound {
		d.reads = append(d.reads, r)
	}
	return d.record(Command{Op: OpDrawIndexed, IndexCount: indexCount, FirstIndex: firstIndex, InstanceCount: instanceCount})
}
