package views

import (
	"context"
	"io"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
)

// MinPasswordLength is the shortest password the server accepts.
const MinPasswordLength = 6

// File is a file picked by the user.
type File struct {
	Name string
	Size int64
	Body io.Reader
}

// Settings is the account settings page.
type Settings struct {
	d Deps
}

func NewSettings(d Deps) *Settings {
	return &Settings{d: d}
}

// UpdateProfile changes the display name and email, then reloads the
// session user.
func (s *Settings) UpdateProfile(ctx context.Context, fullName, email string) (mutation.Outcome, error) {
	if !s.d.signedIn() {
		return mutation.OutcomeFailed, ErrSignedOut
	}
	return s.d.Runner.Run(ctx, s.accountAction("profile", "Profile updated successfully", "Failed to update profile",
		func(ctx context.Context) error {
			_, err := api.Patch[model.User](ctx, s.d.API, api.RouteUpdateAccount, map[string]string{
				"fullName": fullName,
				"email":    email,
			})
			return err
		}))
}

// ChangePassword checks the new password locally before sending anything.
func (s *Settings) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) (mutation.Outcome, error) {
	if !s.d.signedIn() {
		return mutation.OutcomeFailed, ErrSignedOut
	}
	switch {
	case newPassword != confirm:
		return mutation.OutcomeFailed, s.d.reject("Passwords do not match")
	case len(newPassword) < MinPasswordLength:
		return mutation.OutcomeFailed, s.d.reject("Password must be at least 6 characters")
	case oldPassword == "":
		return mutation.OutcomeFailed, s.d.reject("Please enter your current password")
	}
	return s.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID("password", s.d.userID()),
		Call: func(ctx context.Context) error {
			_, err := api.Post[any](ctx, s.d.API, api.RouteChangePassword, map[string]string{
				"oldPassword": oldPassword,
				"newPassword": newPassword,
			})
			return err
		},
		Success: "Password changed successfully",
		Failure: "Failed to change password",
	})
}

// UpdateAvatar uploads a new avatar image.
func (s *Settings) UpdateAvatar(ctx context.Context, f *File) (mutation.Outcome, error) {
	return s.updateImage(ctx, "avatar", api.RouteAvatar, f, "Avatar updated", "Failed to update avatar")
}

// UpdateCover uploads a new channel cover image.
func (s *Settings) UpdateCover(ctx context.Context, f *File) (mutation.Outcome, error) {
	return s.updateImage(ctx, "coverImage", api.RouteCover, f, "Cover image updated", "Failed to update cover")
}

func (s *Settings) updateImage(ctx context.Context, field, route string, f *File, success, failure string) (mutation.Outcome, error) {
	if !s.d.signedIn() {
		return mutation.OutcomeFailed, ErrSignedOut
	}
	if f == nil || f.Body == nil {
		return mutation.OutcomeFailed, ErrNoFile
	}
	return s.d.Runner.Run(ctx, s.accountAction(field, success, failure,
		func(ctx context.Context) error {
			form := api.NewForm().File(field, f.Name, f.Body)
			_, err := api.Patch[model.User](ctx, s.d.API, route, form)
			return err
		}))
}

// accountAction wraps a change to the user record. On success the session
// user is reloaded and the user's channel page is dropped from the cache.
func (s *Settings) accountAction(kind, success, failure string, call func(context.Context) error) mutation.Action {
	var channel vidtube.Key
	if u := s.d.Session.User(); u != nil && u.Username != "" {
		channel = ChannelKey(u.Username).For(u.ID)
	}
	return mutation.Action{
		Entity: mutation.EntityID("account-"+kind, s.d.userID()),
		Call:   call,
		Apply: func(ctx context.Context) error {
			s.d.Session.Refresh(ctx)
			return nil
		},
		Invalidate: []vidtube.Key{channel},
		Success:    success,
		Failure:    failure,
	}
}
