// Package model holds the platform's wire types. Field names follow the
// server's JSON; optional fields are pointers or omitempty.
package model

type User struct {
	ID                        string   `json:"_id"`
	Username                  string   `json:"username"`
	Email                     string   `json:"email"`
	FullName                  string   `json:"fullName"`
	Avatar                    string   `json:"avatar"`
	CoverImage                string   `json:"coverImage,omitempty"`
	WatchHistory              []string `json:"watchHistory,omitempty"`
	SubscribersCount          *int64   `json:"subscribersCount,omitempty"`
	ChannelsSubscribedToCount *int64   `json:"channelsSubscribedToCount,omitempty"`
	IsSubscribed              *bool    `json:"isSubscribed,omitempty"`
	CreatedAt                 Time     `json:"createdAt"`
	UpdatedAt                 Time     `json:"updatedAt"`
}

// Video is always returned with its owner populated.
type Video struct {
	ID            string  `json:"_id"`
	VideoFile     string  `json:"videoFile"`
	Thumbnail     string  `json:"thumbnail"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Duration      float64 `json:"duration"`
	Views         int64   `json:"views"`
	IsPublished   bool    `json:"isPublished"`
	Owner         User    `json:"owner"`
	LikesCount    *int64  `json:"likesCount,omitempty"`
	IsLiked       *bool   `json:"isLiked,omitempty"`
	CommentsCount *int64  `json:"commentsCount,omitempty"`
	CreatedAt     Time    `json:"createdAt"`
	UpdatedAt     Time    `json:"updatedAt"`
}

// Liked reports the server's isLiked flag, false when absent.
func (v *Video) Liked() bool {
	return v != nil && v.IsLiked != nil && *v.IsLiked
}

// OwnerSubscribed reports whether the viewer follows the owner. known is
// false when the server did not say.
func (v *Video) OwnerSubscribed() (subscribed, known bool) {
	if v == nil || v.Owner.IsSubscribed == nil {
		return false, false
	}
	return *v.Owner.IsSubscribed, true
}

type Comment struct {
	ID         string `json:"_id"`
	Content    string `json:"content"`
	Video      string `json:"video"`
	Owner      User   `json:"owner"`
	LikesCount *int64 `json:"likesCount,omitempty"`
	IsLiked    *bool  `json:"isLiked,omitempty"`
	CreatedAt  Time   `json:"createdAt"`
	UpdatedAt  Time   `json:"updatedAt"`
}

type Playlist struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Videos      []Video `json:"videos"`
	Owner       User    `json:"owner"`
	CreatedAt   Time    `json:"createdAt"`
	UpdatedAt   Time    `json:"updatedAt"`
}

type Subscription struct {
	ID         string `json:"_id"`
	Subscriber User   `json:"subscriber"`
	Channel    User   `json:"channel"`
	CreatedAt  Time   `json:"createdAt"`
}

// SubscribedChannel is one row of /subscriptions/u/{id}.
type SubscribedChannel struct {
	ID         string `json:"_id"`
	Channel    User   `json:"channel"`
	Subscriber string `json:"subscriber,omitempty"`
}

type Tweet struct {
	ID         string `json:"_id"`
	Content    string `json:"content"`
	Owner      User   `json:"owner"`
	LikesCount *int64 `json:"likesCount,omitempty"`
	IsLiked    *bool  `json:"isLiked,omitempty"`
	CreatedAt  Time   `json:"createdAt"`
	UpdatedAt  Time   `json:"updatedAt"`
}

type ChannelProfile struct {
	ID                        string `json:"_id"`
	Username                  string `json:"username"`
	FullName                  string `json:"fullName"`
	Email                     string `json:"email"`
	Avatar                    string `json:"avatar"`
	CoverImage                string `json:"coverImage,omitempty"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
	CreatedAt                 Time   `json:"createdAt"`
}

type DashboardStats struct {
	TotalVideos      int64 `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalLikes       int64 `json:"totalLikes"`
}

// WatchHistoryItem is a Video with the time it was watched. WatchedAt is
// nil when the server omits it.
type WatchHistoryItem struct {
	Video
	WatchedAt *Time `json:"watchedAt,omitempty"`
}

// Paginated is the aggregate-paginate page shape used by list endpoints.
type Paginated[T any] struct {
	Docs        []T  `json:"docs"`
	TotalDocs   int  `json:"totalDocs"`
	Limit       int  `json:"limit"`
	Page        int  `json:"page"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
	NextPage    *int `json:"nextPage"`
	PrevPage    *int `json:"prevPage"`
}
