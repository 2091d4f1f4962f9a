package playback

import "math"

const (
	DefaultVolume      = 80
	DefaultSkipSeconds = 10
)

// Media is the element being controlled. Volume is a fraction in [0, 1].
type Media interface {
	Play()
	Pause()
	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	Volume() float64
	SetVolume(v float64)
	Muted() bool
	SetMuted(m bool)
}

// ProgressFunc receives elapsed playback as a percentage in [0, 100].
type ProgressFunc func(percent float64)

type State struct {
	Playing     bool    `json:"playing"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Volume      float64 `json:"volume"`
	Muted       bool    `json:"muted"`
}

// Controller mirrors one media element and forwards commands to it. It is not
// safe for concurrent use.
type Controller struct {
	media      Media
	onProgress ProgressFunc
	state      State
}

func NewController(media Media, volume float64, onProgress ProgressFunc) *Controller {
	return &Controller{
		media:      media,
		onProgress: onProgress,
		state:      State{Volume: clamp(volume, 0, 100)},
	}
}

func (c *Controller) State() State {
	return c.state
}

// EffectiveVolume is what the volume control shows: 0 while muted.
func (c *Controller) EffectiveVolume() float64 {
	if c.state.Muted {
		return 0
	}
	return c.state.Volume
}

// ProgressPercent is elapsed playback, 0 while the duration is unknown.
func (c *Controller) ProgressPercent() float64 {
	if c.state.Duration <= 0 {
		return 0
	}
	return clamp(100*c.state.CurrentTime/c.state.Duration, 0, 100)
}

// TogglePlay asks the media to pause or play. The playing flag only changes
// once the media confirms through OnPlayStateChange.
func (c *Controller) TogglePlay() {
	if c.state.Playing {
		c.media.Pause()
	} else {
		c.media.Play()
	}
}

// OnPlayStateChange records the media's confirmed play/pause state.
func (c *Controller) OnPlayStateChange(playing bool) {
	c.state.Playing = playing
}

// OnTimeUpdate takes the media's reported position as ground truth and reports
// progress when the duration is known.
func (c *Controller) OnTimeUpdate(currentTime, duration float64) {
	if !finite(duration) || duration < 0 {
		duration = 0
	}
	if !finite(currentTime) {
		currentTime = 0
	}
	c.state.CurrentTime = currentTime
	c.state.Duration = duration

	if c.onProgress != nil && duration > 0 {
		c.onProgress(clamp(100*currentTime/duration, 0, 100))
	}
}

// Seek jumps to a position given as a percentage of the duration.
func (c *Controller) Seek(percent float64) {
	if c.state.Duration <= 0 || !finite(percent) {
		return
	}
	target := clamp(percent, 0, 100) / 100 * c.state.Duration
	c.media.SetCurrentTime(target)
	c.state.CurrentTime = target
}

// SetVolume stores a 0-100 level and forwards it as a fraction.
func (c *Controller) SetVolume(level float64) {
	if !finite(level) {
		return
	}
	level = clamp(level, 0, 100)
	c.state.Volume = level
	c.media.SetVolume(level / 100)
}

// ToggleMute flips the mute flag. The stored volume level is kept.
func (c *Controller) ToggleMute() {
	c.state.Muted = !c.state.Muted
	c.media.SetMuted(c.state.Muted)
}

// Skip moves by delta seconds relative to the media's own position. Negative
// deltas rewind. Bounds are left to the media.
func (c *Controller) Skip(delta float64) {
	if !finite(delta) {
		return
	}
	c.media.SetCurrentTime(c.media.CurrentTime() + delta)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
