package views

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
)

// MaxVideoSize is the largest video file accepted.
const MaxVideoSize = 500 << 20

// UploadInput is the filled-in upload form.
type UploadInput struct {
	Video       *File
	Thumbnail   *File
	Title       string
	Description string
	Published   bool
}

// Upload is the video upload page.
type Upload struct {
	d Deps
}

func NewUpload(d Deps) *Upload {
	return &Upload{d: d}
}

// DefaultTitle derives a title from a file name: the extension is dropped
// and dashes and underscores become spaces.
func DefaultTitle(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer("-", " ", "_", " ").Replace(base)
}

// CheckVideo validates a picked video file before the details step.
func (u *Upload) CheckVideo(f *File) error {
	if f != nil && f.Size > MaxVideoSize {
		return u.d.reject("Video must be under 500MB")
	}
	return nil
}

// Submit validates in, sends it as a multipart form and returns the new
// video's ID. A blank title falls back to DefaultTitle of the video file.
func (u *Upload) Submit(ctx context.Context, in UploadInput) (string, mutation.Outcome, error) {
	if !u.d.signedIn() {
		return "", mutation.OutcomeFailed, ErrSignedOut
	}
	if err := u.CheckVideo(in.Video); err != nil {
		return "", mutation.OutcomeFailed, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" && in.Video != nil {
		title = strings.TrimSpace(DefaultTitle(in.Video.Name))
	}
	if in.Video == nil || in.Video.Body == nil || title == "" {
		return "", mutation.OutcomeFailed, u.d.reject("Please provide a title and video file")
	}
	if in.Thumbnail == nil || in.Thumbnail.Body == nil {
		return "", mutation.OutcomeFailed, u.d.reject("Please provide a thumbnail image")
	}

	var videoID string
	outcome, err := u.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID("video-upload", u.d.userID()),
		Call: func(ctx context.Context) error {
			form := api.NewForm().
				File("videoFile", in.Video.Name, in.Video.Body).
				File("thumbnail", in.Thumbnail.Name, in.Thumbnail.Body).
				Set("title", title).
				Set("description", strings.TrimSpace(in.Description)).
				Set("isPublished", strconv.FormatBool(in.Published))
			env, err := api.Post[model.Video](ctx, u.d.API, api.RouteUpload, form)
			if err != nil {
				return err
			}
			videoID = env.Value().ID
			return nil
		},
		// Every list page may now include the upload: the feed, searches,
		// suggestions and the uploader's channel.
		InvalidatePrefix: []vidtube.Key{vidtube.NewKey(api.RouteVideos, nil)},
		Success:          "Video uploaded successfully!",
		Failure:          "Upload failed. Please try again.",
	})
	return videoID, outcome, err
}
