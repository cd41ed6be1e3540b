package core

import "sync"

const AVG_COUNT uint8 = 30

type MetricsState struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	// TransientGrowths counts new backing allocations made by the transient allocator.
	// A steadily rising value means frames_in_flight is too small.
	TransientGrowths uint64
	// TransientWaits counts how often the CPU blocked on a frame completion signal.
	TransientWaits uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

func metrics() *MetricsState {
	if metricsState == nil {
		_ = MetricsInitialize()
	}
	return metricsState
}

func MetricsUpdate(frame_elapsed_time float64) {
	m := metrics()

	// Calculate frame ms average
	frame_ms := (frame_elapsed_time * 1000.0)
	m.MStimes[m.FrameAVGCounter] = frame_ms
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}
		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frame_ms
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
}

func MetricsFPS() float64 {
	return metrics().FPS
}

func MetricsFrameTime() float64 {
	return metrics().MSavg
}

func MetricsFrame() (float64, float64) {
	m := metrics()
	return m.FPS, m.MSavg
}

func MetricsTransientGrowth() {
	metrics().TransientGrowths++
}

func MetricsTransientGrowths() uint64 {
	return metrics().TransientGrowths
}

func MetricsTransientWait() {
	metrics().TransientWaits++
}

func MetricsTransientWaits() uint64 {
	return metrics().TransientWaits
}
