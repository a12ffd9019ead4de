package views

import (
	"context"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/query"
)

// ChannelKey is the unscoped key of a channel profile, which carries the
// viewer's subscription flag.
func ChannelKey(username string) vidtube.Key {
	return vidtube.NewKey(api.Channel(username), nil)
}

// ChannelVideosKey addresses a channel's uploads, newest first. An empty
// channel ID yields NoKey.
func ChannelVideosKey(channelID string) vidtube.Key {
	return vidtube.When(channelID != "", videoListKey(api.VideoListQuery{
		UserID:   channelID,
		SortBy:   api.SortNewest,
		SortType: api.SortDesc,
		Limit:    PageSize,
	}))
}

// Channel is a user's channel page.
type Channel struct {
	d        Deps
	username string
	profile  *query.Query[model.ChannelProfile]
	videos   *query.Query[VideoPage]
}

func NewChannel(d Deps, username string) *Channel {
	return &Channel{
		d:        d,
		username: username,
		profile:  newQuery[model.ChannelProfile](d),
		videos:   newQuery[VideoPage](d),
	}
}

func (c *Channel) Key() vidtube.Key { return c.d.viewerKey(ChannelKey(c.username)) }

func (c *Channel) Profile(ctx context.Context) query.Result[model.ChannelProfile] {
	return c.profile.Get(ctx, c.Key())
}

// VideosKey is NoKey until the profile is cached.
func (c *Channel) VideosKey(ctx context.Context) vidtube.Key {
	res := c.profile.Peek(ctx, c.Key())
	if !res.Ready() {
		return vidtube.NoKey
	}
	return ChannelVideosKey(res.Data.ID)
}

// Videos returns the channel's uploads. It stays idle until Profile has
// loaded.
func (c *Channel) Videos(ctx context.Context) query.Result[VideoPage] {
	return c.videos.Get(ctx, c.VideosKey(ctx))
}

func (c *Channel) Subscribed(ctx context.Context) mutation.Relation {
	res := c.profile.Peek(ctx, c.Key())
	if !res.Ready() {
		return mutation.RelationUnknown
	}
	busy := c.d.Runner.Guard().Busy(mutation.EntityID(kindChannelSub, res.Data.ID))
	return mutation.RelationOf(true, res.Data.IsSubscribed, busy)
}

// ToggleSubscribe flips the viewer's subscription and refreshes the profile.
func (c *Channel) ToggleSubscribe(ctx context.Context) (mutation.Outcome, error) {
	if !c.d.signedIn() {
		return mutation.OutcomeFailed, c.d.reject("Please sign in to subscribe")
	}
	res := c.profile.Peek(ctx, c.Key())
	if !res.Ready() || res.Data.ID == "" {
		return mutation.OutcomeFailed, ErrNotLoaded
	}
	channelID := res.Data.ID
	uid := c.d.userID()

	return c.d.Runner.Run(ctx, mutation.Action{
		Entity: mutation.EntityID(kindChannelSub, channelID),
		Call: func(ctx context.Context) error {
			_, err := api.Post[any](ctx, c.d.API, api.ToggleSubscription(channelID), nil)
			return err
		},
		Invalidate:       []vidtube.Key{c.Key(), SubscriptionsKey(uid)},
		InvalidatePrefix: []vidtube.Key{videoDetails(uid)},
		Success:          subscriptionNotice(res.Data.IsSubscribed),
		Failure:          "Failed to update subscription",
	})
}
