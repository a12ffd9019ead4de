package views

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"my-first_video.mp4", "my first video"},
		{"holiday.final.mov", "holiday.final"},
		{"/tmp/clips/cat_video.webm", "cat video"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultTitle(tt.in), tt.in)
	}
}

func TestUploadSubmit_Validation(t *testing.T) {
	video := func(size int64) *File {
		return &File{Name: "clip.mp4", Size: size, Body: strings.NewReader("mp4")}
	}
	thumb := &File{Name: "thumb.jpg", Body: strings.NewReader("jpg")}

	tests := []struct {
		name string
		in   UploadInput
		want string
	}{
		{"too large", UploadInput{Video: video(MaxVideoSize + 1), Thumbnail: thumb, Title: "t"}, "Video must be under 500MB"},
		{"no video", UploadInput{Thumbnail: thumb, Title: "t"}, "Please provide a title and video file"},
		{"blank title from blank name", UploadInput{Video: &File{Name: ".mp4", Body: strings.NewReader("x")}, Thumbnail: thumb, Title: "  "}, "Please provide a title and video file"},
		{"no thumbnail", UploadInput{Video: video(10), Title: "t"}, "Please provide a thumbnail image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			d, rec := newDeps(t, b, true)

			id, out, err := NewUpload(d).Submit(context.Background(), tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Message)
			assert.Equal(t, mutation.OutcomeFailed, out)
			assert.Empty(t, id)
			assert.Equal(t, tt.want, lastNotice(t, rec).Message)
			assert.Zero(t, b.count(http.MethodPost, api.RouteUpload))
		})
	}
}

func TestUploadSubmit(t *testing.T) {
	b := newBackend()
	b.handle("GET "+api.RouteVideos, func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"docs": []map[string]any{}, "totalDocs": 0})
	})
	b.handle("POST "+api.RouteUpload, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			fail(w, http.StatusBadRequest, "bad form")
			return
		}
		assert.Equal(t, "my holiday", r.FormValue("title"))
		assert.Equal(t, "sun and sea", r.FormValue("description"))
		assert.Equal(t, "false", r.FormValue("isPublished"))
		f, hdr, err := r.FormFile("videoFile")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "mp4-bytes", string(data))
			assert.Equal(t, "my_holiday.mp4", hdr.Filename)
		}
		_, _, err = r.FormFile("thumbnail")
		assert.NoError(t, err)
		ok(w, map[string]any{"_id": "new-video"})
	})
	d, rec := newDeps(t, b, true)
	ctx := context.Background()

	home := NewHome(d)
	require.True(t, home.Feed(ctx).Ready())

	id, out, err := NewUpload(d).Submit(ctx, UploadInput{
		Video:       &File{Name: "my_holiday.mp4", Size: 9, Body: strings.NewReader("mp4-bytes")},
		Thumbnail:   &File{Name: "thumb.jpg", Body: strings.NewReader("jpg")},
		Description: " sun and sea ",
	})
	require.NoError(t, err)
	assert.Equal(t, mutation.OutcomeDone, out)
	assert.Equal(t, "new-video", id)
	assert.Equal(t, "Video uploaded successfully!", lastNotice(t, rec).Message)

	require.True(t, home.Feed(ctx).Ready())
	assert.Equal(t, 2, b.count(http.MethodGet, api.RouteVideos), "feed is refetched after upload")
}

func TestUploadSubmit_ServerError(t *testing.T) {
	b := newBackend()
	b.handle("POST "+api.RouteUpload, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		fail(w, http.StatusRequestEntityTooLarge, "File too large")
	})
	d, rec := newDeps(t, b, true)

	id, out, err := NewUpload(d).Submit(context.Background(), UploadInput{
		Video:     &File{Name: "a.mp4", Size: 3, Body: strings.NewReader("mp4")},
		Thumbnail: &File{Name: "t.jpg", Body: strings.NewReader("jpg")},
		Title:     "a",
	})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, mutation.OutcomeFailed, out)
	assert.Equal(t, mutation.Notice{Level: mutation.LevelError, Message: "File too large"}, lastNotice(t, rec))
}

func TestUploadSubmit_SignedOut(t *testing.T) {
	b := newBackend()
	d, _ := newDeps(t, b, false)

	_, _, err := NewUpload(d).Submit(context.Background(), UploadInput{})
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, b.total())
}
