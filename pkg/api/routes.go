package api

import (
	"net/url"
	"strconv"
	"strings"
)

// Fixed routes, relative to the base URL.
const (
	RouteRegister           = "/users/register"
	RouteLogin              = "/users/login"
	RouteLogout             = "/users/logout"
	RouteRefreshToken       = "/users/refresh-token"
	RouteMe                 = "/users/me"
	RouteUpdateAccount      = "/users/update-account"
	RouteAvatar             = "/users/me/avatar"
	RouteCover              = "/users/me/cover"
	RouteForgotPassword     = "/users/forgot-password"
	RouteResendVerification = "/users/resend-verification"
	RouteChangePassword     = "/users/change-password"
	RouteWatchHistory       = "/users/watch-history"
	RouteVideos             = "/videos/getvideos"
	RouteUpload             = "/videos/upload"
	RouteLikedVideos        = "/likes/videos"
	RouteTweets             = "/tweets"
	RoutePlaylists          = "/playlists"
	RouteDashboardStats     = "/dashboard/stats"
	RouteDashboardVideos    = "/dashboard/videos"
)

func seg(s string) string { return url.PathEscape(s) }

func ResetPassword(token string) string { return "/users/reset-password/" + seg(token) }
func VerifyEmail(token string) string   { return "/users/verify-email/" + seg(token) }
func Channel(username string) string    { return "/users/" + seg(username) }

func Video(id string) string              { return "/videos/" + seg(id) }
func TogglePublish(videoID string) string { return "/videos/toggle/publish/" + seg(videoID) }

func ToggleVideoLike(videoID string) string     { return "/likes/toggle/v/" + seg(videoID) }
func ToggleCommentLike(commentID string) string { return "/likes/toggle/c/" + seg(commentID) }
func ToggleTweetLike(tweetID string) string     { return "/likes/toggle/t/" + seg(tweetID) }

func ToggleSubscription(channelID string) string { return "/subscriptions/c/" + seg(channelID) }
func SubscribedChannels(userID string) string    { return "/subscriptions/u/" + seg(userID) }

// Comments lists or creates comments on a video.
func Comments(videoID string) string { return "/comments/" + seg(videoID) }

// Comment updates or deletes one comment.
func Comment(commentID string) string { return "/comments/c/" + seg(commentID) }

func UserTweets(userID string) string    { return "/tweets/user/" + seg(userID) }
func Tweet(tweetID string) string        { return "/tweets/" + seg(tweetID) }
func Playlist(id string) string          { return "/playlists/" + seg(id) }
func UserPlaylists(userID string) string { return "/playlists/user/" + seg(userID) }

// Sort orders accepted by /videos/getvideos.
const (
	SortRelevance = "score"
	SortNewest    = "createdAt"
	SortViews     = "views"
	SortDuration  = "duration"

	SortDesc = "desc"
	SortAsc  = "asc"
)

// VideoListQuery holds the parameters of /videos/getvideos. Zero fields are
// omitted.
type VideoListQuery struct {
	Query    string
	SortBy   string
	SortType string
	Page     int
	Limit    int
	UserID   string
}

func (q VideoListQuery) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Query); s != "" {
		v.Set("query", s)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortType != "" {
		v.Set("sortType", q.SortType)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.UserID != "" {
		v.Set("userId", q.UserID)
	}
	return v
}

// Path returns the full request path with the encoded query.
func (q VideoListQuery) Path() string {
	if enc := q.Values().Encode(); enc != "" {
		return RouteVideos + "?" + enc
	}
	return RouteVideos
}
