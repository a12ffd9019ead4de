package views

import (
	"context"

	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/query"
)

// PageSize is the page length of every video and comment list.
const PageSize = 20

// VideoPage is one page of /videos/getvideos.
type VideoPage = model.Paginated[model.Video]

func videoListKey(q api.VideoListQuery) vidtube.Key {
	return vidtube.NewKey(api.RouteVideos, q.Values())
}

// FeedKey addresses the newest-first home feed.
func FeedKey() vidtube.Key {
	return videoListKey(api.VideoListQuery{
		SortBy:   api.SortNewest,
		SortType: api.SortDesc,
		Limit:    PageSize,
	})
}

// Home is the landing page.
type Home struct {
	videos *query.Query[VideoPage]
}

func NewHome(d Deps) *Home {
	return &Home{videos: newQuery[VideoPage](d)}
}

// Feed returns the latest videos.
func (h *Home) Feed(ctx context.Context) query.Result[VideoPage] {
	return h.videos.Get(ctx, FeedKey())
}

// SortOption is one entry of the search sort menu.
type SortOption struct {
	Label string
	Value string
}

// SortOptions lists the orders search offers, default first.
var SortOptions = []SortOption{
	{Label: "Relevance", Value: api.SortRelevance},
	{Label: "Upload date", Value: api.SortNewest},
	{Label: "View count", Value: api.SortViews},
	{Label: "Duration", Value: api.SortDuration},
}

// Params is the search page state. Changing the query or the sort order
// starts again from page 1.
type Params struct {
	Query  string
	SortBy string
	Page   int
}

// SetQuery replaces the search text and resets the page.
func (p *Params) SetQuery(q string) {
	if q != p.Query {
		p.Page = 1
	}
	p.Query = q
}

// SetSort replaces the sort order and resets the page.
func (p *Params) SetSort(sortBy string) {
	if sortBy != p.SortBy {
		p.Page = 1
	}
	p.SortBy = sortBy
}

// Next moves to the following page.
func (p *Params) Next() { p.Page = p.page() + 1 }

// Prev moves to the previous page, stopping at 1.
func (p *Params) Prev() {
	if p.page() > 1 {
		p.Page = p.page() - 1
	}
}

func (p Params) page() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

// Key derives the cache key for p. The query text is left out when blank.
func (p Params) Key() vidtube.Key {
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = api.SortRelevance
	}
	return videoListKey(api.VideoListQuery{
		Query:    p.Query,
		SortBy:   sortBy,
		SortType: api.SortDesc,
		Page:     p.page(),
		Limit:    PageSize,
	})
}

// Search is the search and browse page.
type Search struct {
	videos *query.Query[VideoPage]
}

func NewSearch(d Deps) *Search {
	return &Search{videos: newQuery[VideoPage](d)}
}

func (s *Search) Results(ctx context.Context, p Params) query.Result[VideoPage] {
	return s.videos.Get(ctx, p.Key())
}
