package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// lineSession is the plain-text front end used when stdin or stdout is not
// a terminal. Numbered commands refer to the last printed listing.
type lineSession struct {
	app      *App
	out      io.Writer
	title    string
	playlist string
	listing  []Video
}

func Run(app *App, in io.Reader, out io.Writer) error {
	session := &lineSession{app: app, out: out}
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, renderDashboard(app))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			break
		}
		if err := session.handleCommand(line); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
		if app.status != "" {
			fmt.Fprintln(out, "Status: "+app.status)
			app.status = ""
		}
	}
	return scanner.Err()
}

func (s *lineSession) handleCommand(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd, rest := parts[0], strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
	switch cmd {
	case "r", "refresh":
		if err := s.app.Refresh(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(s.out, renderDashboard(s.app))
	case "m", "menu":
		fmt.Fprintln(s.out, renderDashboard(s.app))
	case "l", "list":
		s.show("All videos", "", s.app.BrowseAll())
	case "c", "channel":
		if rest == "" {
			return fmt.Errorf("missing channel name")
		}
		s.show(rest, "", s.app.ChannelVideos(rest))
	case "p", "playlist":
		name := rest
		if name == "" {
			name = WatchLaterPlaylist
		}
		s.show(name, name, s.app.PlaylistVideos(name))
	case "e", "enrich":
		s.listing = s.app.Enrich(context.Background(), s.listing)
		fmt.Fprintln(s.out, renderListing(s.title, s.listing))
	case "s", "seen":
		video, err := s.pick(rest)
		if err != nil {
			return err
		}
		if s.app.MarkSeen(video) {
			s.markListedSeen(video.ID)
			s.app.status = "Marked as seen"
		}
	case "S", "seen-all":
		s.app.MarkAllSeen()
	case "play":
		video, err := s.pick(rest)
		if err != nil {
			return err
		}
		player, err := s.app.Play(video)
		s.markListedSeen(video.ID)
		if err != nil {
			return nil
		}
		player.Stdout = s.out
		player.Stderr = s.out
		return player.Run()
	case "w", "later":
		video, err := s.pick(rest)
		if err != nil {
			return err
		}
		s.app.AddToPlaylist(WatchLaterPlaylist, video)
	case "add-to":
		index, name, _ := strings.Cut(rest, " ")
		video, err := s.pick(index)
		if err != nil {
			return err
		}
		if !s.app.config.MultiPlaylists {
			return fmt.Errorf("multiple playlists are disabled")
		}
		s.app.AddToPlaylist(strings.TrimSpace(name), video)
	case "new":
		if !s.app.config.MultiPlaylists {
			return fmt.Errorf("multiple playlists are disabled")
		}
		s.app.CreatePlaylist(rest)
	case "rm", "remove":
		if s.playlist == "" {
			return fmt.Errorf("not viewing a playlist")
		}
		video, err := s.pick(rest)
		if err != nil {
			return err
		}
		if s.app.RemoveFromPlaylist(s.playlist, video.ID) {
			s.show(s.title, s.playlist, s.app.PlaylistVideos(s.playlist))
		}
	case "del", "delete-playlist":
		if !s.app.config.MultiPlaylists {
			return fmt.Errorf("multiple playlists are disabled")
		}
		s.app.DeletePlaylist(rest)
	case "o", "open":
		video, err := s.pick(rest)
		if err != nil {
			return err
		}
		if s.app.OpenInBrowser(video) {
			s.markListedSeen(video.ID)
		}
	case "y", "copy":
		video, err := s.pick(rest)
		if err != nil {
			return err
		}
		s.app.CopyLink(video)
	case "a", "add":
		if rest == "" {
			return fmt.Errorf("missing feed url")
		}
		return s.app.AddChannel(context.Background(), rest)
	case "channels":
		for i, channel := range s.app.Channels() {
			fmt.Fprintf(s.out, "%3d  %s\n", i+1, channel.Title)
		}
	case "x", "remove-channel":
		index, err := strconv.Atoi(rest)
		if err != nil || index < 1 {
			return fmt.Errorf("invalid channel number %q", rest)
		}
		return s.app.RemoveChannel(index - 1)
	case "toggle":
		setting, ok := map[string]Setting{
			"shorts":    SettingShowShorts,
			"themes":    SettingSeasonalThemes,
			"playlists": SettingMultiPlaylists,
		}[rest]
		if !ok {
			return fmt.Errorf("unknown setting %q", rest)
		}
		if s.app.Toggle(setting) {
			s.app.status = "Settings saved"
		}
	case "?", "help":
		fmt.Fprintln(s.out, helpText())
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *lineSession) show(title, playlist string, videos []Video) {
	s.title = title
	s.playlist = playlist
	s.listing = videos
	fmt.Fprintln(s.out, renderListing(title, videos))
}

// pick resolves a 1-based listing number.
func (s *lineSession) pick(arg string) (Video, error) {
	index, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || index < 1 || index > len(s.listing) {
		return Video{}, fmt.Errorf("invalid video number %q", arg)
	}
	return s.listing[index-1], nil
}

func (s *lineSession) markListedSeen(id string) {
	for i := range s.listing {
		if s.listing[i].ID == id {
			s.listing[i].IsSeen = true
		}
	}
}

func renderDashboard(app *App) string {
	items := BuildMainMenu(app)
	lines := []string{fmt.Sprintf(" %d videos, %d unseen", len(app.videos), app.UnseenCount())}
	for _, item := range items {
		switch item.Action.Kind {
		case MenuBrowseAll, MenuPlaylist, MenuChannel:
			lines = append(lines, "  "+item.Label)
		}
	}
	return strings.Join(lines, "\n")
}

func renderListing(title string, videos []Video) string {
	lines := []string{fmt.Sprintf("%s (%d)", title, len(videos))}
	for i, video := range videos {
		marker := " "
		if !video.IsSeen {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%3d %s %8s  %s  [%s]", i+1, marker, video.Duration,
			truncate(CleanTitle(video.Title), 60), video.Channel))
	}
	if len(videos) == 0 {
		lines = append(lines, "  No videos.")
	}
	return strings.Join(lines, "\n")
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 0 {
		return ""
	}
	return ansi.Truncate(value, max, "...")
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  r: refresh feeds",
		"  m: dashboard",
		"  l: list all videos",
		"  c <channel>: list a channel",
		"  p [name]: list a playlist (Watch Later by default)",
		"  e: resolve missing durations",
		"  s <n>: mark seen",
		"  S: mark all seen",
		"  play <n>: play",
		"  w <n>: add to Watch Later",
		"  add-to <n> <playlist>: add to playlist",
		"  new <name>: create playlist",
		"  rm <n>: remove from playlist",
		"  del <name>: delete playlist",
		"  o <n>: open in browser",
		"  y <n>: copy link",
		"  a <url>: add channel",
		"  channels: list channels",
		"  x <n>: remove channel",
		"  toggle shorts|themes|playlists",
		"  q: quit",
	}, "\n")
}
