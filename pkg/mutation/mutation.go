// Package mutation runs server-side state changes against the shared cache.
//
// An Action names the entity it touches, performs exactly one request, and
// lists the cache keys the change affects. The Runner drops an action whose
// entity already has a request outstanding, invalidates the listed keys on
// success, leaves the cache untouched on failure, and always tells the user
// how it went.
package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/lock"
)

// DefaultFailure is shown for a failure that carries no server message.
const DefaultFailure = "Something went wrong. Please try again."

// Action is one mutation.
type Action struct {
	// Entity identifies the target, e.g. "video-like:<id>". Empty disables
	// the in-flight guard.
	Entity string
	// Call performs the request. It runs at most once per Run.
	Call func(ctx context.Context) error
	// Apply writes a result already known client-side, replacing a refetch.
	// It runs after a successful Call and before Invalidate.
	Apply func(ctx context.Context) error
	// Invalidate lists the keys whose state the mutation changed.
	Invalidate []vidtube.Key
	// InvalidatePrefix lists key prefixes for affected keys that cannot be
	// named one by one.
	InvalidatePrefix []vidtube.Key
	// Success is shown after a successful Call when non-empty.
	Success string
	// Failure is shown when the error carries no server message.
	Failure string
}

// Outcome tells the caller what Run did.
type Outcome int

const (
	// OutcomeDone means the call succeeded and the cache was updated.
	OutcomeDone Outcome = iota + 1
	// OutcomeDropped means another request for the entity was outstanding and
	// nothing was sent.
	OutcomeDropped
	// OutcomeFailed means the call failed and the cache was left alone.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeDropped:
		return "dropped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Runner executes Actions.
type Runner struct {
	cache    vidtube.Cache
	guard    *lock.InFlight
	notifier Notifier
	logger   log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

func WithGuard(g *lock.InFlight) Option {
	return func(r *Runner) {
		if g != nil {
			r.guard = g
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(cache vidtube.Cache, opts ...Option) *Runner {
	r := &Runner{
		cache:    cache,
		guard:    lock.NewInFlight(),
		notifier: NopNotifier{},
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Guard exposes the in-flight set, so views can derive Relation state.
func (r *Runner) Guard() *lock.InFlight { return r.guard }

// Notify sends a notice through the runner's notifier.
func (r *Runner) Notify(lvl Level, msg string) {
	r.notifier.Notify(Notice{Level: lvl, Message: msg})
}

// Run executes a. The returned error is the Call error for OutcomeFailed
// and nil otherwise.
func (r *Runner) Run(ctx context.Context, a Action) (Outcome, error) {
	if a.Call == nil {
		return OutcomeFailed, errors.New("mutation: action has no call")
	}
	logger := log.With(r.logger, "entity", a.Entity)

	if a.Entity != "" {
		release, ok := r.guard.TryAcquire(a.Entity)
		if !ok {
			level.Debug(logger).Log("msg", "mutation already in flight, dropping")
			return OutcomeDropped, nil
		}
		defer release()
	}

	if err := a.Call(ctx); err != nil {
		msg := a.Failure
		if msg == "" {
			msg = DefaultFailure
		}
		r.Notify(LevelError, api.MessageOf(err, msg))
		level.Warn(logger).Log("msg", "mutation failed", "err", err)
		return OutcomeFailed, err
	}

	if a.Apply != nil {
		if err := a.Apply(ctx); err != nil {
			level.Error(logger).Log("msg", "failed to apply known value", "err", err)
		}
	}
	for _, key := range a.Invalidate {
		if key.IsZero() {
			continue
		}
		if err := r.cache.Invalidate(ctx, key); err != nil {
			level.Error(logger).Log("msg", "failed to invalidate", "key", key, "err", err)
		}
	}
	for _, prefix := range a.InvalidatePrefix {
		if prefix.IsZero() {
			continue
		}
		if err := r.cache.InvalidatePrefix(ctx, prefix); err != nil {
			level.Error(logger).Log("msg", "failed to invalidate prefix", "prefix", prefix, "err", err)
		}
	}

	if a.Success != "" {
		r.Notify(LevelSuccess, a.Success)
	}
	level.Debug(logger).Log("msg", "mutation done", "invalidated", len(a.Invalidate), "prefixes", len(a.InvalidatePrefix))
	return OutcomeDone, nil
}

// Relation is the derived state of a viewer-to-entity relationship such as
// "subscribed to channel X" or "likes video Y".
type Relation int

const (
	RelationUnknown Relation = iota
	RelationOff
	RelationOn
	RelationInFlight
)

func (r Relation) String() string {
	switch r {
	case RelationOff:
		return "off"
	case RelationOn:
		return "on"
	case RelationInFlight:
		return "in-flight"
	default:
		return "unknown"
	}
}

// RelationOf derives the relation from server state: loaded says whether
// the server value is known, on is that value, inFlight whether a toggle is
// outstanding. A toggle never flips the local value; only the next fetch
// does.
func RelationOf(loaded, on, inFlight bool) Relation {
	switch {
	case inFlight:
		return RelationInFlight
	case !loaded:
		return RelationUnknown
	case on:
		return RelationOn
	default:
		return RelationOff
	}
}

// EntityID builds a guard identity such as "video-like:abc".
func EntityID(kind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}
