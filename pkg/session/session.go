// Package session tracks the signed-in user. It replaces an ambient auth
// context with an explicit handle passed to every view.
package session

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
)

// Session holds the current user. The zero user (nil) means signed out.
// Safe for concurrent use.
type Session struct {
	client *api.Client
	logger log.Logger

	mu      sync.RWMutex
	user    *model.User
	loading bool
}

func New(client *api.Client, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Session{client: client, logger: logger, loading: true}
}

// Init loads the current user once at start-up. A failure leaves the session
// signed out.
func (s *Session) Init(ctx context.Context) {
	u := s.fetchCurrentUser(ctx)
	s.mu.Lock()
	s.user = u
	s.loading = false
	s.mu.Unlock()
}

// Refresh reloads the current user, e.g. after a profile update.
func (s *Session) Refresh(ctx context.Context) {
	s.setUser(s.fetchCurrentUser(ctx))
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the current user's ID, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Loading is true until Init has finished.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

type loginData struct {
	User model.User `json:"user"`
}

// Login authenticates and stores the returned user. Errors are the
// *api.Error from the server, unchanged.
func (s *Session) Login(ctx context.Context, email, password string) (*model.User, error) {
	env, err := api.Post[loginData](ctx, s.client, api.RouteLogin, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if env.NoContent() {
		// Cookie is set but no user came back; ask the server who we are.
		s.Refresh(ctx)
		return s.User(), nil
	}
	u := env.Data.User
	s.setUser(&u)
	level.Info(s.logger).Log("msg", "signed in", "user", u.Username)
	return s.User(), nil
}

// Register creates an account from a multipart form. It does not sign in;
// the new account must verify its email first.
func (s *Session) Register(ctx context.Context, form *api.Form) error {
	_, err := api.Post[model.User](ctx, s.client, api.RouteRegister, form)
	return err
}

// Logout tells the server and clears the local user whatever the server
// says.
func (s *Session) Logout(ctx context.Context) {
	if _, err := api.Post[any](ctx, s.client, api.RouteLogout, nil); err != nil {
		level.Debug(s.logger).Log("msg", "logout request failed, clearing session anyway", "err", err)
	}
	s.setUser(nil)
}

func (s *Session) setUser(u *model.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Session) fetchCurrentUser(ctx context.Context) *model.User {
	env, err := api.Get[model.User](ctx, s.client, api.RouteMe)
	if err != nil {
		level.Debug(s.logger).Log("msg", "no current user", "err", err)
		return nil
	}
	if env.NoContent() {
		return nil
	}
	u := env.Data
	return &u
}
