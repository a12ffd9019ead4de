// Package views holds the per-page controllers of the client. Each
// controller derives its cache keys, reads through pkg/query and changes
// server state through the mutation Runner; none of them holds state of its
// own beyond what the shared cache and the session already carry.
package views

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/query"
	"github.com/mrchypark/vidtube/pkg/session"
)

// ErrSignedOut is returned by operations of pages that require a signed-in
// user. Nothing is sent and nothing is shown; the caller redirects.
var ErrSignedOut = errors.New("views: not signed in")

// ErrNotLoaded is returned when an operation needs server data that has not
// been loaded yet, such as the owner of a video before the video arrives.
var ErrNotLoaded = errors.New("views: required data is not loaded")

// ErrNoFile is returned by file updates called without a file.
var ErrNoFile = errors.New("views: no file selected")

// ValidationError is a client-side input check that failed. Its message has
// already been shown through the notifier; no request was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Deps is what every controller needs.
type Deps struct {
	API      *api.Client
	Cache    vidtube.Cache
	Session  *session.Session
	Runner   *mutation.Runner
	Notifier mutation.Notifier
	Logger   log.Logger
}

func (d Deps) logger() log.Logger {
	if d.Logger == nil {
		return log.NewNopLogger()
	}
	return d.Logger
}

func (d Deps) notify(lvl mutation.Level, msg string) {
	switch {
	case d.Notifier != nil:
		d.Notifier.Notify(mutation.Notice{Level: lvl, Message: msg})
	case d.Runner != nil:
		d.Runner.Notify(lvl, msg)
	}
}

// reject shows msg and returns it as a *ValidationError.
func (d Deps) reject(msg string) error {
	d.notify(mutation.LevelError, msg)
	return &ValidationError{Message: msg}
}

func (d Deps) signedIn() bool {
	return d.Session != nil && d.Session.Authenticated()
}

func (d Deps) userID() string {
	if d.Session == nil {
		return ""
	}
	return d.Session.UserID()
}

// viewerKey scopes k to the signed-in user. Signed out, k is shared.
func (d Deps) viewerKey(k vidtube.Key) vidtube.Key {
	return k.For(d.userID())
}

func newQuery[T any](d Deps) *query.Query[T] {
	return query.New[T](d.Cache, query.FromAPI[T](d.API), query.WithLogger(d.logger()))
}
