package views

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/query"
)

// MaxCommentLength is the longest comment accepted, in characters.
const MaxCommentLength = 1000

type CommentPage = model.Paginated[model.Comment]

// CommentsKey addresses the first page of a video's comments.
func CommentsKey(videoID string) vidtube.Key {
	return vidtube.NewKey(api.Comments(videoID), url.Values{
		"page":  {"1"},
		"limit": {strconv.Itoa(PageSize)},
	})
}

// Comments is the comment section under a video.
type Comments struct {
	d       Deps
	videoID string
	page    *query.Query[CommentPage]
}

func NewComments(d Deps, videoID string) *Comments {
	return &Comments{d: d, videoID: videoID, page: newQuery[CommentPage](d)}
}

// Key is scoped to the viewer: comments carry the viewer's like flags.
func (c *Comments) Key() vidtube.Key { return c.d.viewerKey(CommentsKey(c.videoID)) }

func (c *Comments) List(ctx context.Context) query.Result[CommentPage] {
	return c.page.Get(ctx, c.Key())
}

// Post adds a comment. The content is trimmed; blank or overlong content is
// rejected before any request.
func (c *Comments) Post(ctx context.Context, content string) (mutation.Outcome, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return mutation.OutcomeFailed, c.d.reject("Comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return mutation.OutcomeFailed, c.d.reject("Comment must be at most 1000 characters")
	}
	if !c.d.signedIn() {
		return mutation.OutcomeFailed, c.d.reject("Please sign in to comment")
	}

	return c.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID("comment-post", c.videoID),
		Call: func(ctx context.Context) error {
			_, err := api.Post[model.Comment](ctx, c.d.API, api.Comments(c.videoID), map[string]string{
				"content": content,
			})
			return err
		},
		Invalidate: []vidtube.Key{c.Key()},
		Success:    "Comment added",
		Failure:    "Failed to add comment",
	})
}

// ToggleLike flips the viewer's like on one comment. Each comment has its
// own guard, so likes on different comments do not block each other.
func (c *Comments) ToggleLike(ctx context.Context, commentID string) (mutation.Outcome, error) {
	if !c.d.signedIn() {
		return mutation.OutcomeFailed, c.d.reject("Please sign in to like comments")
	}
	return c.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID(kindCommentLike, commentID),
		Call: func(ctx context.Context) error {
			_, err := api.Post[any](ctx, c.d.API, api.ToggleCommentLike(commentID), nil)
			return err
		},
		Invalidate: []vidtube.Key{c.Key()},
		Failure:    "Failed to update like",
	})
}
