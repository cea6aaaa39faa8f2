// Package fetch provides the memoized lookup used by every enrichment
// provider: session tier, then persistent tier, then a single in-flight call.
package fetch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/singleflight"

	"github.com/spotlightapp/spotlight-server/internal/cache"
)

// Func performs the real lookup. found == false with a nil error is a valid
// "no data" answer and is cached like any other success.
type Func[T any] func(ctx context.Context) (value T, found bool, err error)

// Tiers bundles the stores one session's memos share.
type Tiers struct {
	Session    *cache.Session[any]
	Persistent *cache.Persistent // nil disables the persistent tier
	Flight     *singleflight.Group
	Logger     *slog.Logger
}

// entry is what both tiers hold.
type entry[T any] struct {
	Value  T    `json:"value"`
	Found  bool `json:"found"`
	Failed bool `json:"-"` // negative result; session tier only
	// abandoned marks a call cut short by cancellation; it is never stored.
	abandoned bool
}

// Memo de-duplicates lookups of one kind of value.
type Memo[T any] struct {
	name    string
	tiers   Tiers
	persist bool
}

// MemoOption configures a Memo.
type MemoOption func(*memoOptions)

type memoOptions struct {
	sessionOnly bool
}

// SessionOnly keeps results out of the persistent tier.
func SessionOnly() MemoOption {
	return func(o *memoOptions) { o.sessionOnly = true }
}

// NewMemo creates a memo. name is used in logs only.
func NewMemo[T any](name string, tiers Tiers, opts ...MemoOption) *Memo[T] {
	var o memoOptions
	for _, opt := range opts {
		opt(&o)
	}
	if tiers.Flight == nil {
		tiers.Flight = &singleflight.Group{}
	}
	if tiers.Logger == nil {
		tiers.Logger = slog.New(slog.DiscardHandler)
	}
	return &Memo[T]{
		name:    name,
		tiers:   tiers,
		persist: tiers.Persistent != nil && !o.sessionOnly,
	}
}

// Do returns the value for key, running fn at most once per key while a
// result is cached or in flight. It reports false for "no data", for a
// failure (cached for this session only), and when ctx ends first.
func (m *Memo[T]) Do(ctx context.Context, key string, fn Func[T]) (T, bool) {
	if e, ok := m.lookup(key); ok {
		return e.Value, e.Found && !e.Failed
	}

	ch := m.tiers.Flight.DoChan(m.sessionKey(key), func() (any, error) {
		// The session tier may have been filled while this call waited.
		if e, ok := m.lookup(key); ok {
			return e, nil
		}
		return m.run(ctx, key, fn), nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false
	case res := <-ch:
		e := res.Val.(entry[T])
		// Joined callers from other sessions record the shared result too.
		m.store(key, e)
		return e.Value, e.Found && !e.Failed
	}
}

// Forget drops key from the session tier, e.g. after a refresh.
func (m *Memo[T]) Forget(key string) {
	if m.tiers.Session != nil {
		m.tiers.Session.Delete(m.sessionKey(key))
	}
}

func (m *Memo[T]) run(ctx context.Context, key string, fn Func[T]) entry[T] {
	var (
		e   entry[T]
		err error
		pc  panics.Catcher
	)
	pc.Try(func() {
		e.Value, e.Found, err = fn(ctx)
	})
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.tiers.Logger.Debug("lookup abandoned", "memo", m.name, "key", key)
			return entry[T]{Failed: true, abandoned: true}
		}
		m.tiers.Logger.Debug("lookup failed", "memo", m.name, "key", key, "error", err)
		e = entry[T]{Failed: true}
		m.store(key, e)
		return e
	}

	if m.persist {
		m.tiers.Persistent.Set(key, e)
	}
	m.store(key, e)
	return e
}

func (m *Memo[T]) lookup(key string) (entry[T], bool) {
	if m.tiers.Session != nil {
		if v, ok := m.tiers.Session.Get(m.sessionKey(key)); ok {
			if e, ok := v.(entry[T]); ok {
				return e, true
			}
		}
	}
	if m.persist {
		var e entry[T]
		if m.tiers.Persistent.Get(key, &e) {
			m.store(key, e)
			return e, true
		}
	}
	return entry[T]{}, false
}

func (m *Memo[T]) store(key string, e entry[T]) {
	if m.tiers.Session != nil && !e.abandoned {
		m.tiers.Session.Set(m.sessionKey(key), e)
	}
}

func (m *Memo[T]) sessionKey(key string) string {
	return m.name + "|" + key
}
