package webgpu

import (
	"time"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

const pollInterval = 250 * time.Microsecond

// tracker counts submissions. wgpu only reports an idle queue, so a serial
// is complete once the queue drained after it was submitted.
type tracker struct {
	poll      func() bool
	submitted uint64
	completed uint64
	lost      bool
}

func (t *tracker) submit() uint64 {
	t.submitted++
	return t.submitted
}

func (t *tracker) done(serial uint64) (bool, error) {
	if t.lost {
		return false, core.ErrDeviceLost
	}
	if t.completed >= serial {
		return true, nil
	}
	if t.poll != nil && t.poll() {
		t.completed = t.submitted
	}
	return t.completed >= serial, nil
}

// drained marks everything submitted so far as complete.
func (t *tracker) drained() {
	t.completed = t.submitted
}

type frameSignal struct {
	tracker *tracker
	serial  uint64
}

func (s *frameSignal) Signaled() (bool, error) {
	return s.tracker.done(s.serial)
}

func (s *frameSignal) Wait(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := s.tracker.done(s.serial)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return metadata.ErrSignalTimeout
		}
		time.Sleep(pollInterval)
	}
}
