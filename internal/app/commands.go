package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mrchypark/vidtube/pkg/format"
	"github.com/mrchypark/vidtube/pkg/model"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/query"
	"github.com/mrchypark/vidtube/pkg/views"
)

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("usage")

const titleWidth = 60

type command struct {
	args string
	help string
	min  int
	exec func(a *App, ctx context.Context, w io.Writer, args []string) error
}

var commands = map[string]command{
	"feed":          {help: "latest videos", exec: (*App).feed},
	"search":        {args: "<query>", help: "search videos by relevance", exec: (*App).search},
	"watch":         {args: "<video-id>", help: "video details, suggestions and comments", min: 1, exec: (*App).watch},
	"channel":       {args: "<username>", help: "channel profile and uploads", min: 1, exec: (*App).channel},
	"history":       {help: "watch history", exec: (*App).history},
	"clear-history": {help: "delete the watch history", exec: (*App).clearHistory},
	"liked":         {help: "liked videos", exec: (*App).liked},
	"subscriptions": {help: "followed channels", exec: (*App).subscriptions},
	"like":          {args: "<video-id>", help: "toggle the like on a video", min: 1, exec: (*App).like},
	"subscribe":     {args: "<video-id>", help: "toggle the subscription to a video's owner", min: 1, exec: (*App).subscribe},
	"comment":       {args: "<video-id> <text>", help: "comment on a video", min: 2, exec: (*App).comment},
}

// Usage writes the command list.
func Usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "commands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(tw, "  %s %s\t%s\n", name, c.args, c.help)
	}
	_ = tw.Flush()
}

// Exec runs one command. No arguments means "feed".
func (a *App) Exec(ctx context.Context, w io.Writer, args []string) error {
	name := "feed"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	c, ok := commands[name]
	if !ok || len(args) < c.min {
		Usage(w)
		return fmt.Errorf("%w: %s", ErrUsage, name)
	}
	return c.exec(a, ctx, w, args)
}

func (a *App) feed(ctx context.Context, w io.Writer, _ []string) error {
	res := views.NewHome(a.Deps).Feed(ctx)
	return printVideos(w, "Home", res.State, res.Value().Docs, "No videos yet. Be the first to upload!")
}

func (a *App) search(ctx context.Context, w io.Writer, args []string) error {
	var p views.Params
	p.SetQuery(strings.Join(args, " "))
	res := views.NewSearch(a.Deps).Results(ctx, p)

	title := "Browse Videos"
	if p.Query != "" {
		title = fmt.Sprintf("Results for %q", p.Query)
	}
	if res.Ready() {
		total := res.Value().TotalDocs
		title += fmt.Sprintf(" (%d video%s found)", total, plural(total))
	}
	return printVideos(w, title, res.State, res.Value().Docs, "No videos found")
}

func (a *App) watch(ctx context.Context, w io.Writer, args []string) error {
	page := views.NewWatch(a.Deps, args[0])
	res := page.Video(ctx)
	if err := stateErr(res.State, "video"); err != nil {
		return err
	}
	v := res.Value()
	fmt.Fprintf(w, "%s\n%s · %s views · %s\n", v.Title, v.Owner.FullName, format.Views(float64(v.Views)), format.Date(v.CreatedAt.Time))
	if v.LikesCount != nil {
		fmt.Fprintf(w, "%s likes · %s\n", format.Views(float64(*v.LikesCount)), page.Liked(ctx))
	}
	if desc := strings.TrimSpace(v.Description); desc != "" {
		fmt.Fprintf(w, "\n%s\n", format.Truncate(desc, 280))
	}

	if s := page.Suggested(ctx); s.Ready() {
		fmt.Fprintln(w)
		if err := printVideos(w, "Up next", s.State, s.Value(), ""); err != nil {
			return err
		}
	}

	comments := views.NewComments(a.Deps, args[0]).List(ctx)
	if comments.Ready() {
		c := comments.Value()
		fmt.Fprintf(w, "\n%d Comments\n", c.TotalDocs)
		for _, cm := range c.Docs {
			fmt.Fprintf(w, "  @%s · %s\n    %s\n", cm.Owner.Username, format.TimeAgo(cm.CreatedAt.Time), cm.Content)
		}
	}
	return nil
}

func (a *App) channel(ctx context.Context, w io.Writer, args []string) error {
	page := views.NewChannel(a.Deps, args[0])
	res := page.Profile(ctx)
	if err := stateErr(res.State, "channel"); err != nil {
		return err
	}
	p := res.Value()
	fmt.Fprintf(w, "%s (@%s)\n%s · %s\n", p.FullName, p.Username,
		format.Subscribers(float64(p.SubscribersCount)), page.Subscribed(ctx))
	fmt.Fprintln(w)
	videos := page.Videos(ctx)
	return printVideos(w, "Videos", videos.State, videos.Value().Docs, "This channel has no videos yet")
}

func (a *App) history(ctx context.Context, w io.Writer, _ []string) error {
	page := views.NewHistory(a.Deps)
	if page.Key().IsZero() {
		return views.ErrSignedOut
	}
	res := page.Items(ctx)
	if err := stateErr(res.State, "history"); err != nil {
		return err
	}
	items := res.Value()
	if len(items) == 0 {
		fmt.Fprintln(w, "No watch history")
		return nil
	}

	now := time.Now()
	last := ""
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		watched := it.CreatedAt.Time
		if it.WatchedAt != nil && !it.WatchedAt.IsZero() {
			watched = it.WatchedAt.Time
		}
		if sep := format.DateSeparatorAt(watched, now); sep != last {
			fmt.Fprintf(tw, "%s\n", sep)
			last = sep
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", format.Truncate(it.Title, titleWidth), it.Owner.FullName, format.Duration(it.Duration))
	}
	return tw.Flush()
}

func (a *App) clearHistory(ctx context.Context, _ io.Writer, _ []string) error {
	_, err := views.NewHistory(a.Deps).Clear(ctx)
	return err
}

func (a *App) liked(ctx context.Context, w io.Writer, _ []string) error {
	page := views.NewLikedVideos(a.Deps)
	if page.Key().IsZero() {
		return views.ErrSignedOut
	}
	res := page.Videos(ctx)
	return printVideos(w, "Liked Videos", res.State, res.Value(), "Videos you like will show up here")
}

func (a *App) subscriptions(ctx context.Context, w io.Writer, _ []string) error {
	page := views.NewSubscriptions(a.Deps)
	if page.Key().IsZero() {
		return views.ErrSignedOut
	}
	res := page.Channels(ctx)
	if err := stateErr(res.State, "subscriptions"); err != nil {
		return err
	}
	fmt.Fprintln(w, "Subscriptions")
	for _, s := range res.Value() {
		fmt.Fprintf(w, "  %s (@%s)\n", s.Channel.FullName, s.Channel.Username)
	}
	return nil
}

func (a *App) like(ctx context.Context, _ io.Writer, args []string) error {
	return outcomeErr(views.NewWatch(a.Deps, args[0]).ToggleLike(ctx))
}

func (a *App) subscribe(ctx context.Context, _ io.Writer, args []string) error {
	page := views.NewWatch(a.Deps, args[0])
	if err := stateErr(page.Video(ctx).State, "video"); err != nil {
		return err
	}
	return outcomeErr(page.ToggleSubscribe(ctx))
}

func (a *App) comment(ctx context.Context, _ io.Writer, args []string) error {
	return outcomeErr(views.NewComments(a.Deps, args[0]).Post(ctx, strings.Join(args[1:], " ")))
}

func printVideos(w io.Writer, title string, state query.State, videos []model.Video, empty string) error {
	if err := stateErr(state, strings.ToLower(title)); err != nil {
		return err
	}
	fmt.Fprintln(w, title)
	if len(videos) == 0 && empty != "" {
		fmt.Fprintf(w, "  %s\n", empty)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, v := range videos {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s views\t%s\t%s\n",
			v.ID,
			format.Truncate(v.Title, titleWidth),
			v.Owner.FullName,
			format.Views(float64(v.Views)),
			format.TimeAgo(v.CreatedAt.Time),
			format.Duration(v.Duration),
		)
	}
	return tw.Flush()
}

func stateErr(state query.State, what string) error {
	switch state {
	case query.StateReady:
		return nil
	case query.StateIdle:
		return views.ErrNotLoaded
	default:
		return fmt.Errorf("could not load %s", what)
	}
}

func outcomeErr(out mutation.Outcome, err error) error {
	if err != nil {
		return err
	}
	if out == mutation.OutcomeDropped {
		return errors.New("request already in progress")
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
