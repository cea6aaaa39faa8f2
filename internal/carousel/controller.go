// Package carousel drives the slide ring: navigation, transitions, sentinel
// snapping and autoplay.
package carousel

import (
	"sync"
	"time"

	"github.com/spotlightapp/spotlight-server/internal/clock"
)

// Defaults for timing.
const (
	DefaultAutoplayInterval   = 8 * time.Second
	DefaultTransitionDuration = 500 * time.Millisecond
	DefaultEndAdvanceDelay    = time.Second
)

// State is the controller's main state.
type State int

const (
	Idle State = iota
	Showing
	Transitioning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Showing:
		return "showing"
	case Transitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// RealIndex maps a ring position to the real slide it shows:
// 0 shows N, N+1 shows 1.
func RealIndex(position, n int) int {
	if n <= 0 {
		return 0
	}
	return ((position-1+n)%n+n)%n + 1
}

// Hooks receive the controller's output. They run outside the controller's
// lock, one event at a time, and must not call navigation methods.
type Hooks struct {
	// OnPosition fires whenever the ring moves. animate is false for the
	// initial placement and for sentinel snaps.
	OnPosition func(position int, animate bool)
	// OnIndexChange fires once per settled real index.
	OnIndexChange func(realIndex int)
}

// Options configures a Controller.
type Options struct {
	Count              int // number of real slides
	SavedIndex         int // restored when within 1..Count
	AutoplayInterval   time.Duration
	TransitionDuration time.Duration
	WaitForTrailer     bool
	EndAdvanceDelay    time.Duration
	Clock              clock.Clock
}

type event struct {
	position int
	animate  bool
	settled  int // real index; 0 when not a settle event
}

// Controller is the carousel state machine.
type Controller struct {
	opts  Options
	clock clock.Clock
	hooks Hooks

	emitMu sync.Mutex // serializes hook delivery
	mu     sync.Mutex

	state    State
	position int

	started   bool
	stopped   bool
	hovered   bool
	suspended bool // a trailer is playing and autoplay waits for its end

	autoplay   clock.Timer
	transition clock.Timer
	endAdvance clock.Timer
	gen        int // invalidates callbacks of stopped timers
}

// New creates a controller.
func New(opts Options, hooks Hooks) *Controller {
	if opts.AutoplayInterval <= 0 {
		opts.AutoplayInterval = DefaultAutoplayInterval
	}
	if opts.TransitionDuration <= 0 {
		opts.TransitionDuration = DefaultTransitionDuration
	}
	if opts.EndAdvanceDelay <= 0 {
		opts.EndAdvanceDelay = DefaultEndAdvanceDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Controller{opts: opts, clock: opts.Clock, hooks: hooks}
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State           State `json:"-"`
	Position        int   `json:"position"`
	RealIndex       int   `json:"real_index"`
	AutoplayRunning bool  `json:"autoplay_running"`
	Hovered         bool  `json:"hovered"`
	Suspended       bool  `json:"suspended"`
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:           c.state,
		Position:        c.position,
		RealIndex:       RealIndex(c.position, c.opts.Count),
		AutoplayRunning: c.autoplay != nil,
		Hovered:         c.hovered,
		Suspended:       c.suspended,
	}
}

// Start shows the restored or first slide and starts autoplay. With no
// slides the controller stays idle.
func (c *Controller) Start() {
	c.run(func() []event {
		if c.started || c.stopped || c.opts.Count == 0 {
			return nil
		}
		c.started = true
		c.position = 1
		if s := c.opts.SavedIndex; s >= 1 && s <= c.opts.Count {
			c.position = s
		}
		c.state = Showing
		c.scheduleAutoplay()
		return []event{{position: c.position}, {position: c.position, settled: c.position}}
	})
}

// Next moves one slide forward.
func (c *Controller) Next() {
	c.run(func() []event { return c.moveBy(1) })
}

// Prev moves one slide back.
func (c *Controller) Prev() {
	c.run(func() []event { return c.moveBy(-1) })
}

// GoTo moves to real slide index (a dot click). Out-of-range indices are
// ignored.
func (c *Controller) GoTo(index int) {
	c.run(func() []event {
		if index < 1 || index > c.opts.Count {
			return nil
		}
		return c.moveTo(index)
	})
}

// HoverEnter pauses autoplay.
func (c *Controller) HoverEnter() {
	c.run(func() []event {
		c.hovered = true
		c.stopAutoplay()
		return nil
	})
}

// HoverLeave resumes autoplay.
func (c *Controller) HoverLeave() {
	c.run(func() []event {
		c.hovered = false
		c.scheduleAutoplay()
		return nil
	})
}

// VideoStarted suspends autoplay until VideoEnded when waiting for
// trailers is enabled.
func (c *Controller) VideoStarted() {
	c.run(func() []event {
		if !c.opts.WaitForTrailer || c.state == Idle {
			return nil
		}
		c.suspended = true
		c.stopAutoplay()
		return nil
	})
}

// VideoEnded advances after the end delay when autoplay was suspended for
// the trailer.
func (c *Controller) VideoEnded() {
	c.run(func() []event {
		if !c.opts.WaitForTrailer || !c.suspended {
			return nil
		}
		c.suspended = false
		if c.endAdvance != nil {
			c.endAdvance.Stop()
		}
		gen := c.gen
		c.endAdvance = c.clock.AfterFunc(c.opts.EndAdvanceDelay, func() {
			c.run(func() []event {
				if gen != c.gen {
					return nil
				}
				c.endAdvance = nil
				if c.hovered {
					c.scheduleAutoplay()
					return nil
				}
				return c.moveBy(1)
			})
		})
		return nil
	})
}

// Stop cancels every timer. The controller ignores input afterwards.
func (c *Controller) Stop() {
	c.run(func() []event {
		c.stopped = true
		c.gen++
		c.stopAutoplay()
		for _, t := range []clock.Timer{c.transition, c.endAdvance} {
			if t != nil {
				t.Stop()
			}
		}
		c.transition, c.endAdvance = nil, nil
		return nil
	})
}

// run applies fn under the lock and then delivers the events it returned.
func (c *Controller) run(fn func() []event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	events := fn()
	c.mu.Unlock()

	for _, ev := range events {
		if ev.settled > 0 {
			if c.hooks.OnIndexChange != nil {
				c.hooks.OnIndexChange(ev.settled)
			}
			continue
		}
		if c.hooks.OnPosition != nil {
			c.hooks.OnPosition(ev.position, ev.animate)
		}
	}
}

func (c *Controller) moveBy(delta int) []event {
	return c.moveTo(c.position + delta)
}

// moveTo starts a transition. A trigger while transitioning is dropped.
func (c *Controller) moveTo(target int) []event {
	if c.stopped || c.state != Showing || c.opts.Count <= 1 {
		return nil
	}
	target = max(0, min(target, c.opts.Count+1))
	if target == c.position {
		return nil
	}

	c.state = Transitioning
	c.stopAutoplay()
	if c.endAdvance != nil {
		c.endAdvance.Stop()
		c.endAdvance = nil
	}
	gen := c.gen
	c.transition = c.clock.AfterFunc(c.opts.TransitionDuration, func() {
		c.run(func() []event {
			if gen != c.gen {
				return nil
			}
			return c.settle()
		})
	})
	c.position = target
	return []event{{position: target, animate: true}}
}

// settle ends a transition, snapping sentinels onto their real slides.
func (c *Controller) settle() []event {
	c.transition = nil
	c.state = Showing
	c.suspended = false

	var events []event
	if c.position == 0 || c.position == c.opts.Count+1 {
		c.position = RealIndex(c.position, c.opts.Count)
		events = append(events, event{position: c.position})
	}
	events = append(events, event{position: c.position, settled: c.position})
	c.scheduleAutoplay()
	return events
}

func (c *Controller) canAutoplay() bool {
	return c.started && !c.stopped && !c.hovered && !c.suspended &&
		c.state == Showing && c.opts.Count > 1
}

func (c *Controller) scheduleAutoplay() {
	c.stopAutoplay()
	if !c.canAutoplay() {
		return
	}
	gen := c.gen
	var t clock.Timer
	t = c.clock.AfterFunc(c.opts.AutoplayInterval, func() {
		c.run(func() []event {
			if gen != c.gen || c.autoplay != t {
				return nil
			}
			c.autoplay = nil
			return c.moveBy(1)
		})
	})
	c.autoplay = t
}

func (c *Controller) stopAutoplay() {
	if c.autoplay != nil {
		c.autoplay.Stop()
		c.autoplay = nil
	}
}
