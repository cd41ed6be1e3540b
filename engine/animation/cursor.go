package animation

import "github.com/spaghettifunk/marionette/engine/math"

// Cursor is the playback state of one mesh instance.
type Cursor struct {
	clip    *Clip
	elapsed float32
}

func (c *Cursor) Clip() *Clip {
	return c.clip
}

// Elapsed is in seconds.
func (c *Cursor) Elapsed() float32 {
	return c.elapsed
}

// Advance moves the cursor forward. Elapsed time is kept within one loop
// so precision does not degrade over long sessions.
func (c *Cursor) Advance(seconds float32) {
	c.elapsed += seconds
	if d := c.clip.Seconds(); d > 0 {
		c.elapsed = math.Mod(c.elapsed, d)
		if c.elapsed < 0 {
			c.elapsed += d
		}
	}
}

// SetClip switches clips and rewinds. It reports false, and keeps the
// playback position, when clip is already active.
func (c *Cursor) SetClip(clip *Clip) bool {
	if c.clip == clip {
		return false
	}
	c.clip = clip
	c.elapsed = 0
	return true
}

// Replace swaps in a reloaded version of the active clip without rewinding.
func (c *Cursor) Replace(clip *Clip) {
	c.clip = clip
	c.Advance(0)
}
