package views

import (
	"context"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/query"
)

const suggestedLimit = 10

// Guard entity kinds.
const (
	kindVideoLike   = "video-like"
	kindCommentLike = "comment-like"
	kindChannelSub  = "channel-sub"
)

// VideoKey is the unscoped key of a video's detail. The detail carries the
// viewer's like and subscription flags, so pages read it through For.
func VideoKey(videoID string) vidtube.Key {
	return vidtube.NewKey(api.Video(videoID), nil)
}

// videoDetails prefixes every video detail key seen by viewer.
func videoDetails(viewer string) vidtube.Key {
	return vidtube.NewKey(api.Video(""), nil).For(viewer)
}

// SuggestedKey addresses the most viewed videos shown beside the player.
func SuggestedKey() vidtube.Key {
	return videoListKey(api.VideoListQuery{
		SortBy:   api.SortViews,
		SortType: api.SortDesc,
		Limit:    suggestedLimit,
	})
}

// Watch is the player page of one video.
type Watch struct {
	d       Deps
	videoID string
	video   *query.Query[model.Video]
	list    *query.Query[VideoPage]
}

func NewWatch(d Deps, videoID string) *Watch {
	return &Watch{
		d:       d,
		videoID: videoID,
		video:   newQuery[model.Video](d),
		list:    newQuery[VideoPage](d),
	}
}

func (w *Watch) Key() vidtube.Key { return w.d.viewerKey(VideoKey(w.videoID)) }

func (w *Watch) Video(ctx context.Context) query.Result[model.Video] {
	return w.video.Get(ctx, w.Key())
}

// Suggested returns the suggestion list without the video being watched.
func (w *Watch) Suggested(ctx context.Context) query.Result[[]model.Video] {
	res := w.list.Get(ctx, SuggestedKey())
	if !res.Ready() {
		return query.Result[[]model.Video]{State: res.State}
	}
	out := make([]model.Video, 0, len(res.Data.Docs))
	for _, v := range res.Data.Docs {
		if v.ID != w.videoID {
			out = append(out, v)
		}
	}
	return query.Result[[]model.Video]{State: query.StateReady, Data: &out}
}

// Liked is the like relation as last reported by the server.
func (w *Watch) Liked(ctx context.Context) mutation.Relation {
	res := w.video.Peek(ctx, w.Key())
	busy := w.d.Runner.Guard().Busy(mutation.EntityID(kindVideoLike, w.videoID))
	return mutation.RelationOf(res.Ready(), res.Ready() && res.Data.Liked(), busy)
}

// Subscribed is the viewer's relation to the video's owner.
func (w *Watch) Subscribed(ctx context.Context) mutation.Relation {
	res := w.video.Peek(ctx, w.Key())
	if !res.Ready() {
		return mutation.RelationUnknown
	}
	on, known := res.Data.OwnerSubscribed()
	busy := w.d.Runner.Guard().Busy(mutation.EntityID(kindChannelSub, res.Data.Owner.ID))
	return mutation.RelationOf(known, on, busy)
}

// ToggleLike flips the viewer's like. A second call while the first is
// outstanding sends nothing.
func (w *Watch) ToggleLike(ctx context.Context) (mutation.Outcome, error) {
	if !w.d.signedIn() {
		return mutation.OutcomeFailed, w.d.reject("Please sign in to like videos")
	}
	return w.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID(kindVideoLike, w.videoID),
		Call: func(ctx context.Context) error {
			_, err := api.Post[any](ctx, w.d.API, api.ToggleVideoLike(w.videoID), nil)
			return err
		},
		Invalidate: []vidtube.Key{w.Key(), LikedVideosKey(w.d.userID())},
		Failure:    "Failed to update like",
	})
}

// ToggleSubscribe flips the viewer's subscription to the video's owner. The
// video must be loaded.
func (w *Watch) ToggleSubscribe(ctx context.Context) (mutation.Outcome, error) {
	if !w.d.signedIn() {
		return mutation.OutcomeFailed, w.d.reject("Please sign in to subscribe")
	}
	res := w.video.Peek(ctx, w.Key())
	if !res.Ready() || res.Data.Owner.ID == "" {
		return mutation.OutcomeFailed, ErrNotLoaded
	}
	ownerID := res.Data.Owner.ID
	ownerName := res.Data.Owner.Username
	subscribed, _ := res.Data.OwnerSubscribed()
	uid := w.d.userID()

	return w.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID(kindChannelSub, ownerID),
		Call: func(ctx context.Context) error {
			_, err := api.Post[any](ctx, w.d.API, api.ToggleSubscription(ownerID), nil)
			return err
		},
		Invalidate: []vidtube.Key{
			w.Key(),
			SubscriptionsKey(uid),
			vidtube.When(ownerName != "", ChannelKey(ownerName).For(uid)),
		},
		InvalidatePrefix: []vidtube.Key{videoDetails(uid)},
		Success:          subscriptionNotice(subscribed),
		Failure:          "Failed to update subscription",
	})
}

// subscriptionNotice names the result of a toggle from the state before it.
func subscriptionNotice(wasSubscribed bool) string {
	if wasSubscribed {
		return "Unsubscribed"
	}
	return "Subscribed!"
}
