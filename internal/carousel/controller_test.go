package carousel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/clock"
)

type recorder struct {
	positions []int
	snaps     []int
	indices   []int
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnPosition: func(position int, animate bool) {
			r.positions = append(r.positions, position)
			if !animate {
				r.snaps = append(r.snaps, position)
			}
		},
		OnIndexChange: func(real int) { r.indices = append(r.indices, real) },
	}
}

const (
	interval   = 5 * time.Second
	transition = 300 * time.Millisecond
)

func newController(t *testing.T, n int, mod func(*Options)) (*Controller, *clock.Fake, *recorder) {
	t.Helper()
	fc := clock.NewFake()
	rec := &recorder{}
	opts := Options{
		Count:              n,
		AutoplayInterval:   interval,
		TransitionDuration: transition,
		EndAdvanceDelay:    time.Second,
		Clock:              fc,
	}
	if mod != nil {
		mod(&opts)
	}
	c := New(opts, rec.hooks())
	t.Cleanup(c.Stop)
	return c, fc, rec
}

func TestRealIndex(t *testing.T) {
	tests := []struct {
		position, n, want int
	}{
		{0, 3, 3},
		{1, 3, 1},
		{3, 3, 3},
		{4, 3, 1},
		{1, 1, 1},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RealIndex(tt.position, tt.n), "position %d of %d", tt.position, tt.n)
	}
}

func TestStart_RestoresSavedIndex(t *testing.T) {
	c, _, rec := newController(t, 5, func(o *Options) { o.SavedIndex = 3 })
	c.Start()

	s := c.Snapshot()
	assert.Equal(t, Showing, s.State)
	assert.Equal(t, 3, s.Position)
	assert.True(t, s.AutoplayRunning)
	assert.Equal(t, []int{3}, rec.indices)

	out, _, _ := newController(t, 5, func(o *Options) { o.SavedIndex = 9 })
	out.Start()
	assert.Equal(t, 1, out.Snapshot().Position)
}

func TestStart_Empty(t *testing.T) {
	c, fc, rec := newController(t, 0, nil)
	c.Start()
	c.Next()
	fc.Advance(time.Minute)

	assert.Equal(t, Idle, c.Snapshot().State)
	assert.Empty(t, rec.positions)
	assert.Empty(t, rec.indices)
}

func TestSingleSlide_NoNavigation(t *testing.T) {
	c, fc, rec := newController(t, 1, nil)
	c.Start()
	c.Next()
	c.Prev()
	fc.Advance(time.Minute)

	s := c.Snapshot()
	assert.Equal(t, 1, s.Position)
	assert.False(t, s.AutoplayRunning)
	assert.Equal(t, []int{1}, rec.indices)
	assert.Zero(t, fc.Pending())
}

func TestNext_WrapsThroughSentinel(t *testing.T) {
	const n = 4
	c, fc, rec := newController(t, n, nil)
	c.Start()

	for range n {
		c.Next()
		fc.Advance(transition)
	}

	s := c.Snapshot()
	assert.Equal(t, 1, s.Position)
	assert.Equal(t, 1, s.RealIndex)
	assert.Equal(t, []int{1, 2, 3, 4, 1}, rec.indices)
	assert.Equal(t, []int{1, 1}, rec.snaps, "initial placement and the snap off the trailing clone")
}

func TestPrev_WrapsThroughLeadingSentinel(t *testing.T) {
	c, fc, rec := newController(t, 3, nil)
	c.Start()

	c.Prev()
	assert.Equal(t, 0, c.Snapshot().Position)
	assert.Equal(t, Transitioning, c.Snapshot().State)
	fc.Advance(transition)

	assert.Equal(t, 3, c.Snapshot().Position)
	assert.Equal(t, []int{1, 3}, rec.indices)
	assert.Contains(t, rec.snaps, 3)
}

func TestTriggersDuringTransitionDropped(t *testing.T) {
	c, fc, rec := newController(t, 5, nil)
	c.Start()

	c.Next()
	c.Next()
	c.Next()
	c.GoTo(5)
	fc.Advance(transition)

	assert.Equal(t, 2, c.Snapshot().Position)
	assert.Equal(t, []int{1, 2}, rec.indices)
}

func TestGoTo(t *testing.T) {
	c, fc, rec := newController(t, 5, nil)
	c.Start()

	c.GoTo(4)
	fc.Advance(transition)
	assert.Equal(t, 4, c.Snapshot().Position)

	c.GoTo(4)
	c.GoTo(0)
	c.GoTo(6)
	assert.Equal(t, Showing, c.Snapshot().State)
	assert.Equal(t, []int{1, 4}, rec.indices)
}

func TestAutoplay(t *testing.T) {
	c, fc, rec := newController(t, 3, nil)
	c.Start()

	fc.Advance(interval - time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().Position)

	fc.Advance(time.Millisecond + transition)
	assert.Equal(t, 2, c.Snapshot().Position)

	fc.Advance(interval + transition)
	fc.Advance(interval + transition)
	assert.Equal(t, 1, c.Snapshot().Position)
	assert.Equal(t, []int{1, 2, 3, 1}, rec.indices)
}

func TestManualNavigationRestartsAutoplay(t *testing.T) {
	c, fc, _ := newController(t, 3, nil)
	c.Start()

	fc.Advance(4 * time.Second)
	c.Next()
	fc.Advance(transition)
	require.Equal(t, 2, c.Snapshot().Position)

	fc.Advance(interval - time.Millisecond)
	assert.Equal(t, 2, c.Snapshot().Position, "countdown restarts after settling")
	fc.Advance(time.Millisecond + transition)
	assert.Equal(t, 3, c.Snapshot().Position)
}

func TestHoverPausesAutoplay(t *testing.T) {
	c, fc, _ := newController(t, 3, nil)
	c.Start()

	c.HoverEnter()
	assert.False(t, c.Snapshot().AutoplayRunning)
	fc.Advance(time.Minute)
	assert.Equal(t, 1, c.Snapshot().Position)

	c.HoverLeave()
	assert.True(t, c.Snapshot().AutoplayRunning)
	fc.Advance(interval + transition)
	assert.Equal(t, 2, c.Snapshot().Position)
}

func TestWaitForTrailer(t *testing.T) {
	c, fc, rec := newController(t, 3, func(o *Options) { o.WaitForTrailer = true })
	c.Start()

	c.VideoStarted()
	s := c.Snapshot()
	assert.True(t, s.Suspended)
	assert.False(t, s.AutoplayRunning)

	fc.Advance(time.Minute)
	assert.Equal(t, 1, c.Snapshot().Position)

	c.VideoEnded()
	fc.Advance(time.Second + transition)
	assert.Equal(t, 2, c.Snapshot().Position)
	assert.False(t, c.Snapshot().Suspended)
	assert.Equal(t, []int{1, 2}, rec.indices)
}

func TestWaitForTrailer_Disabled(t *testing.T) {
	c, fc, _ := newController(t, 3, nil)
	c.Start()

	c.VideoStarted()
	assert.False(t, c.Snapshot().Suspended)
	c.VideoEnded()

	fc.Advance(interval + transition)
	assert.Equal(t, 2, c.Snapshot().Position)
}

func TestManualNavigationClearsSuspension(t *testing.T) {
	c, fc, _ := newController(t, 3, func(o *Options) { o.WaitForTrailer = true })
	c.Start()

	c.VideoStarted()
	c.Next()
	fc.Advance(transition)

	s := c.Snapshot()
	assert.False(t, s.Suspended)
	assert.True(t, s.AutoplayRunning)
}

func TestStop(t *testing.T) {
	c, fc, rec := newController(t, 3, nil)
	c.Start()
	c.Next()
	c.Stop()

	fc.Advance(time.Minute)
	c.Next()
	assert.Equal(t, []int{1}, rec.indices)
	assert.Zero(t, fc.Pending())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "showing", Showing.String())
	assert.Equal(t, "transitioning", Transitioning.String())
	assert.Equal(t, "unknown", State(42).String())
}
