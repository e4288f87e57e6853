package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const browseAllLimit = 60

// App holds the state of one interactive session: the current aggregation,
// the seen set captured at refresh time and the user's flags.
type App struct {
	config     Config
	store      *Store
	subs       *Subscriptions
	fetcher    *FeedFetcher
	aggregator *Aggregator
	resolver   *DurationResolver
	channels   *ChannelResolver
	log        zerolog.Logger
	videos     []Video
	byChannel  map[string][]Video
	seen       map[string]bool
	failed     int
	status     string
	openURL    func(string) error
	copyText   func(string) error
	saveConfig func(Config) error
}

func NewApp(cfg Config, logger zerolog.Logger) (*App, error) {
	store, err := NewStore(cfg.DBPath, withComponent(logger, "store"))
	if err != nil {
		return nil, err
	}
	fetcher := NewFeedFetcher()
	app := &App{
		config:     cfg,
		store:      store,
		subs:       NewSubscriptions(cfg.OPMLPath),
		fetcher:    fetcher,
		aggregator: NewAggregator(fetcher, withComponent(logger, "aggregator")),
		resolver: NewDurationResolver(store.CachedDurations(), store, withComponent(logger, "duration"),
			defaultDurationStrategies(cfg.YtdlpPath)...),
		channels:   NewChannelResolver(cfg.YtdlpPath, withComponent(logger, "channel")),
		log:        withComponent(logger, "app"),
		byChannel:  map[string][]Video{},
		seen:       map[string]bool{},
		openURL:    defaultOpenURL,
		copyText:   copyToClipboard,
		saveConfig: SaveConfig,
	}
	return app, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

// cycle is the outcome of one aggregation pass before it is applied.
type cycle struct {
	feeds  int
	seen   map[string]bool
	result Aggregation
}

// Refresh runs one aggregation cycle over the subscribed feeds.
func (a *App) Refresh(ctx context.Context) error {
	a.applyCycle(a.collectCycle(ctx))
	return ctx.Err()
}

// collectCycle only touches the store, the subscription file and the
// resolver, so it may run off the UI goroutine.
func (a *App) collectCycle(ctx context.Context) cycle {
	urls := a.subs.LoadFeedURLs()
	seen := a.store.SeenIDs()
	return cycle{
		feeds:  len(urls),
		seen:   seen,
		result: a.aggregator.Aggregate(ctx, urls, seen, a.resolver.Snapshot()),
	}
}

func (a *App) applyCycle(c cycle) {
	a.seen = c.seen
	a.videos = c.result.Videos
	a.byChannel = c.result.ByChannel
	a.failed = c.result.Failed
	switch {
	case c.feeds == 0:
		a.status = "No channels found. Add one first."
	case c.result.Failed > 0:
		a.status = fmt.Sprintf("Loaded %d videos (%d of %d feeds failed)", len(a.videos), c.result.Failed, c.feeds)
	default:
		a.status = fmt.Sprintf("Loaded %d videos from %d feeds", len(a.videos), c.feeds)
	}
}

func (a *App) Videos() []Video {
	return a.videos
}

// BrowseAll is the newest slice of the merged list, shorts filtered per
// the current setting.
func (a *App) BrowseAll() []Video {
	videos := a.videos
	if len(videos) > browseAllLimit {
		videos = videos[:browseAllLimit]
	}
	return filterShorts(append([]Video(nil), videos...), a.config.ShowShorts)
}

func (a *App) ChannelNames() []string {
	names := make([]string, 0, len(a.byChannel))
	for name := range a.byChannel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *App) ChannelVideos(name string) []Video {
	return filterShorts(append([]Video(nil), a.byChannel[name]...), a.config.ShowShorts)
}

func (a *App) ChannelUnseen(name string) int {
	return countUnseen(a.byChannel[name])
}

func (a *App) UnseenCount() int {
	return countUnseen(a.videos)
}

func countUnseen(videos []Video) int {
	count := 0
	for _, video := range videos {
		if !video.IsSeen {
			count++
		}
	}
	return count
}

// PlaylistVideos loads a playlist and patches IsSeen against the current
// seen records.
func (a *App) PlaylistVideos(name string) []Video {
	videos := a.store.PlaylistVideos(name)
	seen := a.store.SeenIDs()
	for i := range videos {
		videos[i].IsSeen = seen[videos[i].ID]
	}
	return filterShorts(videos, a.config.ShowShorts)
}

// Enrich resolves unknown durations for a listing and drops videos that
// turned out to be shorts when shorts are hidden.
func (a *App) Enrich(ctx context.Context, videos []Video) []Video {
	videos = filterShorts(videos, a.config.ShowShorts)
	if a.resolver.ResolveBatch(ctx, videos) > 0 {
		a.applyDurations(videos)
	}
	return filterShorts(videos, a.config.ShowShorts)
}

// ApplyEnrichment merges a listing resolved off the UI goroutine and
// returns it filtered for display.
func (a *App) ApplyEnrichment(videos []Video) []Video {
	a.applyDurations(videos)
	return filterShorts(videos, a.config.ShowShorts)
}

func (a *App) applyDurations(resolved []Video) {
	byID := make(map[string]Video, len(resolved))
	for _, video := range resolved {
		if video.Duration != UnknownDuration {
			byID[video.ID] = video
		}
	}
	patch := func(list []Video) {
		for i := range list {
			if update, ok := byID[list[i].ID]; ok {
				list[i].Duration = update.Duration
				list[i].IsShorts = list[i].IsShorts || update.IsShorts
			}
		}
	}
	patch(a.videos)
	for _, list := range a.byChannel {
		patch(list)
	}
}

func (a *App) setSeen(ids ...string) {
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		a.seen[id] = true
		marked[id] = true
	}
	patch := func(list []Video) {
		for i := range list {
			if marked[list[i].ID] {
				list[i].IsSeen = true
			}
		}
	}
	patch(a.videos)
	for _, list := range a.byChannel {
		patch(list)
	}
}

func (a *App) MarkSeen(video Video) bool {
	if err := a.store.MarkSeen(video.ID, video.Title); err != nil {
		a.status = "Could not mark as seen"
		return false
	}
	a.setSeen(video.ID)
	return true
}

// MarkAllSeen marks every unseen video of the current cycle and returns how
// many were marked.
func (a *App) MarkAllSeen() (int, bool) {
	unseen := []Video{}
	for _, video := range a.videos {
		if !video.IsSeen {
			unseen = append(unseen, video)
		}
	}
	if err := a.store.MarkAllSeen(unseen); err != nil {
		a.status = "Mark all as seen failed"
		return 0, false
	}
	ids := make([]string, len(unseen))
	for i, video := range unseen {
		ids[i] = video.ID
	}
	a.setSeen(ids...)
	a.status = fmt.Sprintf("Marked %d videos as seen.", len(unseen))
	return len(unseen), true
}

func (a *App) Playlists() []Playlist {
	return a.store.Playlists()
}

func (a *App) UserPlaylists() []Playlist {
	user := []Playlist{}
	for _, playlist := range a.store.Playlists() {
		if !playlist.IsSystem {
			user = append(user, playlist)
		}
	}
	return user
}

func (a *App) PlaylistCounts() map[string]int {
	return a.store.PlaylistCounts()
}

func (a *App) CreatePlaylist(name string) bool {
	name = strings.TrimSpace(name)
	if _, err := a.store.CreatePlaylist(name); err != nil {
		a.status = fmt.Sprintf("Could not create playlist '%s'.", name)
		return false
	}
	a.status = "Created playlist " + name
	return true
}

func (a *App) AddToPlaylist(name string, video Video) bool {
	if err := a.store.AddToPlaylist(name, video); err != nil {
		if errors.Is(err, ErrPlaylistNotFound) {
			a.status = fmt.Sprintf("Playlist '%s' does not exist.", name)
		} else {
			a.status = "Failed to add."
		}
		return false
	}
	a.status = "Added to: " + name
	return true
}

func (a *App) RemoveFromPlaylist(name, videoID string) bool {
	if err := a.store.RemoveFromPlaylist(name, videoID); err != nil {
		a.status = "Could not remove."
		return false
	}
	a.status = "Removed."
	return true
}

func (a *App) DeletePlaylist(name string) bool {
	if err := a.store.DeletePlaylist(name); err != nil {
		switch {
		case errors.Is(err, ErrSystemPlaylist):
			a.status = fmt.Sprintf("'%s' cannot be deleted.", name)
		case errors.Is(err, ErrPlaylistNotFound):
			a.status = fmt.Sprintf("Playlist '%s' does not exist.", name)
		default:
			a.status = "Could not delete playlist."
		}
		return false
	}
	a.status = fmt.Sprintf("Playlist '%s' deleted.", name)
	return true
}

// Play marks the video seen, puts its link on the clipboard and returns
// the player command for the caller to run.
func (a *App) Play(video Video) (*exec.Cmd, error) {
	a.MarkSeen(video)
	if err := a.copyText(video.URL); err != nil {
		a.log.Warn().Err(err).Msg("clipboard")
	}
	cmd, err := playerCommand(a.config.PlayerCommand)
	if err != nil {
		a.status = "Error launching: " + err.Error()
		return nil, err
	}
	a.status = "Starting player for: " + CleanTitle(video.Title)
	return cmd, nil
}

func (a *App) OpenInBrowser(video Video) bool {
	if err := a.openURL(video.URL); err != nil {
		a.log.Warn().Err(err).Str("url", video.URL).Msg("open browser")
	}
	return a.MarkSeen(video)
}

func (a *App) CopyLink(video Video) bool {
	if err := a.copyText(video.URL); err != nil {
		a.status = "Clipboard error: " + err.Error()
		return false
	}
	a.status = "Link copied to clipboard"
	return true
}

func (a *App) Channels() []Channel {
	channels, err := a.subs.Channels()
	if err != nil {
		a.log.Error().Err(err).Msg("read subscriptions")
		return nil
	}
	return channels
}

// AddChannel resolves a channel or feed URL, verifies it parses as a feed
// and appends it to the subscription list.
func (a *App) AddChannel(ctx context.Context, input string) error {
	feed, err := a.probeChannel(ctx, input)
	return a.subscribe(feed, err)
}

// probeChannel resolves and fetches a candidate feed without touching
// session state.
func (a *App) probeChannel(ctx context.Context, input string) (ParsedFeed, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ParsedFeed{}, errors.New("empty feed url")
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	target := a.channels.ResolveFeedURL(ctx, input)
	if looksLikeFeedURL(target) {
		return a.fetcher.FetchFeed(ctx, target)
	}
	return a.fetcher.DiscoverFeed(ctx, target)
}

func (a *App) subscribe(feed ParsedFeed, err error) error {
	if err != nil {
		a.status = "Error: Not a valid RSS feed."
		return err
	}
	if feed.Title == "" && len(feed.Entries) == 0 {
		a.status = "Error: Not a valid RSS feed."
		return errNotAFeed
	}
	title := firstNonEmpty(feed.Title, "Unknown Channel")
	if err := a.subs.AddFeedURL(feed.URL, title); err != nil {
		if errors.Is(err, ErrFeedExists) {
			a.status = "Channel already exists: " + title
		} else {
			a.status = "Could not save: " + err.Error()
		}
		return err
	}
	a.status = "Added: " + title
	return nil
}

func (a *App) RemoveChannel(index int) error {
	removed, err := a.subs.RemoveFeedURL(index)
	if err != nil {
		a.status = "Could not remove channel: " + err.Error()
		return err
	}
	a.status = "Channel removed: " + removed.Title
	return nil
}

func (a *App) ImportOPML(path string) (int, error) {
	added, err := a.subs.ImportOPML(path)
	if err != nil {
		return added, err
	}
	a.status = fmt.Sprintf("Imported %d channels", added)
	return added, nil
}

func (a *App) ExportState(path string) error {
	return a.store.ExportState(path)
}

func (a *App) ImportState(path string) error {
	if err := a.store.ImportState(path); err != nil {
		return err
	}
	a.seen = a.store.SeenIDs()
	a.resolver = NewDurationResolver(a.store.CachedDurations(), a.store, a.resolver.log, a.resolver.strategies...)
	return nil
}

type Setting int

const (
	SettingShowShorts Setting = iota
	SettingSeasonalThemes
	SettingMultiPlaylists
)

// Toggle flips one flag and persists the config right away.
func (a *App) Toggle(setting Setting) bool {
	switch setting {
	case SettingShowShorts:
		a.config.ShowShorts = !a.config.ShowShorts
	case SettingSeasonalThemes:
		a.config.SeasonalThemes = !a.config.SeasonalThemes
	case SettingMultiPlaylists:
		a.config.MultiPlaylists = !a.config.MultiPlaylists
	}
	if err := a.saveConfig(a.config); err != nil {
		a.log.Error().Err(err).Msg("save config")
		a.status = "Could not save settings"
		return false
	}
	return true
}
