package views

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
)

// ErrEmailNotVerified is returned by Login when the account exists but its
// email is not verified. No notice is shown; the caller shows the
// verification banner and offers ResendVerification.
var ErrEmailNotVerified = errors.New("views: email not verified")

// Registration is the sign-up form.
type Registration struct {
	FullName string
	Username string
	Email    string
	Password string
	Avatar   *File
}

// Auth covers sign-in, sign-up and the email-driven account flows.
type Auth struct {
	d Deps

	mu         sync.Mutex
	unverified string
}

func NewAuth(d Deps) *Auth {
	return &Auth{d: d}
}

// Login signs in. A 403 from the server yields ErrEmailNotVerified and
// raises the banner; any other server error is shown verbatim.
func (a *Auth) Login(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, a.d.reject("Please fill in all fields")
	}
	a.setBanner("")

	u, err := a.d.Session.Login(ctx, email, password)
	if err != nil {
		if api.StatusOf(err) == http.StatusForbidden {
			a.setBanner(email)
			level.Info(a.d.logger()).Log("msg", "sign-in blocked until email is verified", "email", email)
			return nil, fmt.Errorf("%w: %w", ErrEmailNotVerified, err)
		}
		a.d.notify(mutation.LevelError, api.MessageOf(err, mutation.DefaultFailure))
		return nil, err
	}
	a.d.notify(mutation.LevelSuccess, "Logged in successfully")
	return u, nil
}

// Banner reports whether the "verify your email" banner is up and for which
// address.
func (a *Auth) Banner() (email string, show bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unverified, a.unverified != ""
}

func (a *Auth) setBanner(email string) {
	a.mu.Lock()
	a.unverified = email
	a.mu.Unlock()
}

// ResendVerification asks the server to send the verification email again.
// A successful resend lowers the banner.
func (a *Auth) ResendVerification(ctx context.Context, email string) (mutation.Outcome, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return mutation.OutcomeFailed, a.d.reject("Please enter your email address first")
	}
	outcome, err := a.d.Runner.Run(ctx, mutation.Action{
		Entity:  mutation.EntityID("resend-verification", email),
		Call:    a.postEmail(api.RouteResendVerification, email),
		Success: "Verification email sent! Please check your inbox.",
		Failure: "Failed to resend email. Please try again.",
	})
	if outcome == mutation.OutcomeDone {
		a.setBanner("")
	}
	return outcome, err
}

// Register creates an account. The account must verify its email before it
// can sign in, so the session stays signed out.
func (a *Auth) Register(ctx context.Context, r Registration) (mutation.Outcome, error) {
	if r.FullName == "" || r.Username == "" || r.Email == "" || r.Password == "" {
		return mutation.OutcomeFailed, a.d.reject("Please fill in all required fields")
	}
	if len(r.Password) < MinPasswordLength {
		return mutation.OutcomeFailed, a.d.reject("Password must be at least 6 characters")
	}
	return a.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID("register", r.Email),
		Call: func(ctx context.Context) error {
			form := api.NewForm().
				Set("fullname", r.FullName).
				Set("username", r.Username).
				Set("email", r.Email).
				Set("password", r.Password)
			if r.Avatar != nil && r.Avatar.Body != nil {
				form.File("avatar", r.Avatar.Name, r.Avatar.Body)
			}
			return a.d.Session.Register(ctx, form)
		},
		Success: "Account created! Please verify your email.",
		Failure: "Registration failed. Please try again.",
	})
}

// ForgotPassword requests a password reset link.
func (a *Auth) ForgotPassword(ctx context.Context, email string) (mutation.Outcome, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return mutation.OutcomeFailed, a.d.reject("Please enter your email")
	}
	return a.d.Runner.Run(ctx, mutation.Action{
		Entity:  mutation.EntityID("forgot-password", email),
		Call:    a.postEmail(api.RouteForgotPassword, email),
		Success: "Password reset link sent to your email",
		Failure: "Failed to send reset link. Please try again.",
	})
}

// ResetPassword sets a new password with the token from a reset link.
func (a *Auth) ResetPassword(ctx context.Context, token, password, confirm string) (mutation.Outcome, error) {
	switch {
	case token == "":
		return mutation.OutcomeFailed, a.d.reject("This password reset link is invalid or has expired. Please request a new one.")
	case password != confirm:
		return mutation.OutcomeFailed, a.d.reject("Passwords do not match")
	case len(password) < MinPasswordLength:
		return mutation.OutcomeFailed, a.d.reject("Password must be at least 6 characters")
	}
	return a.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID("reset-password", token),
		Call: func(ctx context.Context) error {
			_, err := api.Post[any](ctx, a.d.API, api.ResetPassword(token), map[string]string{"password": password})
			return err
		},
		Success: "Password has been reset successfully",
		Failure: "Failed to reset password. The link may have expired.",
	})
}

// VerifyEmail confirms an address with the token from a verification link.
// It returns the message to show on success.
func (a *Auth) VerifyEmail(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", a.d.reject("Invalid verification link. Please check your email.")
	}
	env, err := api.Get[any](ctx, a.d.API, api.VerifyEmail(token))
	if err != nil {
		return "", err
	}
	if env.NoContent() || env.Message == "" {
		return "Email verified successfully!", nil
	}
	return env.Message, nil
}

// Logout signs out. It always succeeds locally.
func (a *Auth) Logout(ctx context.Context) {
	a.d.Session.Logout(ctx)
	a.d.notify(mutation.LevelSuccess, "Logged out successfully")
}

func (a *Auth) postEmail(route, email string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := api.Post[any](ctx, a.d.API, route, map[string]string{"email": email})
		return err
	}
}
