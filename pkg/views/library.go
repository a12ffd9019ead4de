package views

import (
	"context"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/query"
)

// SubscriptionsKey addresses the channels userID follows. An empty userID
// yields NoKey.
func SubscriptionsKey(userID string) vidtube.Key {
	return vidtube.When(userID != "", vidtube.NewKey(api.SubscribedChannels(userID), nil).For(userID))
}

// HistoryKey addresses userID's watch history. The request path names no
// user, so the key is scoped to them. An empty userID yields NoKey.
func HistoryKey(userID string) vidtube.Key {
	return vidtube.When(userID != "", vidtube.NewKey(api.RouteWatchHistory, nil).For(userID))
}

// LikedVideosKey addresses the videos userID liked. An empty userID yields
// NoKey.
func LikedVideosKey(userID string) vidtube.Key {
	return vidtube.When(userID != "", vidtube.NewKey(api.RouteLikedVideos, nil).For(userID))
}

// History is the signed-in user's watch history.
type History struct {
	d     Deps
	items *query.Query[[]model.WatchHistoryItem]
}

func NewHistory(d Deps) *History {
	return &History{d: d, items: newQuery[[]model.WatchHistoryItem](d)}
}

// Key is NoKey while signed out.
func (h *History) Key() vidtube.Key {
	return HistoryKey(h.d.userID())
}

func (h *History) Items(ctx context.Context) query.Result[[]model.WatchHistoryItem] {
	return h.items.Get(ctx, h.Key())
}

// Clear deletes the history on the server and stores the empty list it now
// is, without reading it back.
func (h *History) Clear(ctx context.Context) (mutation.Outcome, error) {
	key := h.Key()
	if key.IsZero() {
		return mutation.OutcomeFailed, ErrSignedOut
	}
	return h.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID("history-clear", h.d.userID()),
		Call: func(ctx context.Context) error {
			_, err := api.Delete[any](ctx, h.d.API, api.RouteWatchHistory)
			return err
		},
		Apply: func(ctx context.Context) error {
			return h.items.Set(ctx, key, []model.WatchHistoryItem{})
		},
		Success: "Watch history cleared",
		Failure: "Failed to clear history",
	})
}

// LikedVideos is the list of videos the signed-in user liked.
type LikedVideos struct {
	d      Deps
	videos *query.Query[[]model.Video]
}

func NewLikedVideos(d Deps) *LikedVideos {
	return &LikedVideos{d: d, videos: newQuery[[]model.Video](d)}
}

func (l *LikedVideos) Key() vidtube.Key {
	return LikedVideosKey(l.d.userID())
}

func (l *LikedVideos) Videos(ctx context.Context) query.Result[[]model.Video] {
	return l.videos.Get(ctx, l.Key())
}

// Subscriptions lists the channels the signed-in user follows.
type Subscriptions struct {
	d        Deps
	channels *query.Query[[]model.SubscribedChannel]
}

func NewSubscriptions(d Deps) *Subscriptions {
	return &Subscriptions{d: d, channels: newQuery[[]model.SubscribedChannel](d)}
}

// Key waits for the session user's ID.
func (s *Subscriptions) Key() vidtube.Key {
	return SubscriptionsKey(s.d.userID())
}

func (s *Subscriptions) Channels(ctx context.Context) query.Result[[]model.SubscribedChannel] {
	return s.channels.Get(ctx, s.Key())
}
