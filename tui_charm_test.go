package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	downKey  = tea.KeyMsg{Type: tea.KeyDown}
	upKey    = tea.KeyMsg{Type: tea.KeyUp}
)

func press(t *testing.T, m tuiModel, msg tea.Msg) (tuiModel, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	next, ok := model.(tuiModel)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	return next, cmd
}

func fixedThemeClock(t *testing.T, when time.Time) {
	t.Helper()
	orig := themeClock
	t.Cleanup(func() { themeClock = orig })
	themeClock = func() time.Time { return when }
}

// loadedModel returns a sized model whose first refresh already landed.
func loadedModel(t *testing.T, strategies ...durationStrategy) tuiModel {
	t.Helper()
	fixedThemeClock(t, time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))
	app := newTestApp(t, twoChannelFeeds(time.Now()), strategies...)
	subscribeAll(t, app, "https://feeds.test/alpha", "https://feeds.test/beta")
	m := newTUIModel(app)
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = press(t, m, refreshCmd(app)())
	return m
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestTUIInitialRefresh(t *testing.T) {
	fixedThemeClock(t, time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))
	app := newTestApp(t, twoChannelFeeds(time.Now()))
	subscribeAll(t, app, "https://feeds.test/alpha", "https://feeds.test/beta")
	m := newTUIModel(app)
	if !m.loading || m.Init() == nil {
		t.Fatalf("expected the first refresh to start on Init")
	}
	if m.View() != "Loading..." {
		t.Fatalf("expected placeholder before the window size is known")
	}

	msg := refreshCmd(app)()
	if _, ok := msg.(refreshResultMsg); !ok {
		t.Fatalf("unexpected refresh message %T", msg)
	}
	m, _ = press(t, m, msg)
	if m.loading || app.status != "Loaded 3 videos from 2 feeds" {
		t.Fatalf("unexpected state after refresh: %v %q", m.loading, app.status)
	}
	if m.menu[0].Label != "All videos (3 unseen)" || m.menu[2].Label != "Alpha (2)" {
		t.Fatalf("expected menu rebuilt with counts, got %+v", m.menu[:3])
	}
}

func TestTUISpinnerTick(t *testing.T) {
	m := loadedModel(t)
	m, cmd := press(t, m, spinnerTickMsg{})
	if m.spinnerIndex != 1 || cmd == nil {
		t.Fatalf("expected spinner to advance and keep ticking")
	}
}

func TestTUIMenuNavigation(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(t, m, upKey)
	if m.menuCursor != 0 {
		t.Fatalf("cursor must not move above the first entry")
	}
	m, _ = press(t, m, downKey)
	m, _ = press(t, m, runes("j"))
	if m.menuCursor != 2 {
		t.Fatalf("expected cursor 2, got %d", m.menuCursor)
	}
	m, _ = press(t, m, runes("k"))
	if m.menuCursor != 1 {
		t.Fatalf("expected cursor 1, got %d", m.menuCursor)
	}
	for i := 0; i < 50; i++ {
		m, _ = press(t, m, downKey)
	}
	if m.menuCursor != len(m.menu)-1 {
		t.Fatalf("cursor must stop on the last entry")
	}
	if _, cmd := press(t, m, enterKey); !isQuit(cmd) {
		t.Fatalf("expected the last entry to quit")
	}
	if _, cmd := press(t, m, runes("q")); !isQuit(cmd) {
		t.Fatalf("expected q to quit from the dashboard")
	}
	if _, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuit(cmd) {
		t.Fatalf("expected ctrl+c to quit")
	}
}

func TestTUIOpenListingEnriches(t *testing.T) {
	strategy := &fakeStrategy{name: "fake", durations: map[string]string{videoURL("a1"): "10:00"}}
	m := loadedModel(t, strategy)
	m, cmd := press(t, m, enterKey)
	if m.screen != screenVideos || m.listTitle != "All videos" || len(m.videos) != 3 {
		t.Fatalf("expected all videos listing, got screen %v with %d videos", m.screen, len(m.videos))
	}
	if cmd == nil || !m.loading {
		t.Fatalf("expected a duration lookup for unknown durations")
	}
	m, _ = press(t, m, cmd())
	if m.loading || m.videos[0].Duration != "10:00" {
		t.Fatalf("expected enriched listing, got %+v", m.videos[0])
	}
	if m.app.Videos()[0].Duration != "10:00" {
		t.Fatalf("expected session state patched")
	}

	m, _ = press(t, m, escKey)
	m, cmd = m.dispatch(MenuAction{Kind: MenuChannel, Name: "Alpha"})
	if m.listTitle != "Alpha" || m.videos[0].Duration != "10:00" {
		t.Fatalf("unexpected channel listing %+v", m.videos)
	}
	if cmd == nil {
		t.Fatalf("a2 is still unknown and should be looked up")
	}
}

func TestTUIStaleEnrichmentIgnored(t *testing.T) {
	strategy := &fakeStrategy{name: "fake", durations: map[string]string{videoURL("b1"): "7:00"}}
	m := loadedModel(t, strategy)
	m, cmd := m.dispatch(MenuAction{Kind: MenuBrowseAll})
	m, _ = press(t, m, escKey)
	if m.screen != screenMain || m.loading {
		t.Fatalf("leaving the listing should stop the spinner")
	}
	m, _ = m.dispatch(MenuAction{Kind: MenuChannel, Name: "Alpha"})
	listed := len(m.videos)

	m, _ = press(t, m, cmd())
	if len(m.videos) != listed || m.listTitle != "Alpha" {
		t.Fatalf("a stale result must not replace the current listing")
	}
	if m.app.ChannelVideos("Beta")[0].Duration != "7:00" {
		t.Fatalf("stale results still patch the session")
	}
}

func TestTUIMarkSeenKey(t *testing.T) {
	m := loadedModel(t)
	m, _ = m.dispatch(MenuAction{Kind: MenuBrowseAll})
	m, _ = press(t, m, runes("s"))
	if !m.videos[0].IsSeen || m.app.status != "Marked as seen" {
		t.Fatalf("expected first video marked seen")
	}
	m, _ = press(t, m, runes("h"))
	if m.screen != screenMain || m.menu[0].Label != "All videos (2 unseen)" {
		t.Fatalf("expected dashboard with fresh counts, got %q", m.menu[0].Label)
	}
}

func openActions(t *testing.T, m tuiModel, action MenuAction) tuiModel {
	t.Helper()
	m, _ = m.dispatch(action)
	m, _ = press(t, m, enterKey)
	if m.screen != screenActions {
		t.Fatalf("expected action menu, got %v", m.screen)
	}
	return m
}

func selectAction(t *testing.T, m tuiModel, action VideoAction) (tuiModel, tea.Cmd) {
	t.Helper()
	for i, candidate := range m.actions {
		if candidate == action {
			m.optionCursor = i
			return press(t, m, enterKey)
		}
	}
	t.Fatalf("action %v not offered in %v", action, m.actions)
	return m, nil
}

func TestTUIWatchLaterAndRemove(t *testing.T) {
	m := loadedModel(t)
	m = openActions(t, m, MenuAction{Kind: MenuBrowseAll})
	m, _ = selectAction(t, m, ActionWatchLater)
	if m.screen != screenVideos || m.app.PlaylistCounts()[WatchLaterPlaylist] != 1 {
		t.Fatalf("expected video added to Watch Later")
	}

	m, _ = press(t, m, escKey)
	m = openActions(t, m, MenuAction{Kind: MenuPlaylist, Name: WatchLaterPlaylist})
	if m.playlist != WatchLaterPlaylist {
		t.Fatalf("expected playlist listing")
	}
	m, _ = selectAction(t, m, ActionRemove)
	if len(m.videos) != 0 || m.app.status != "Removed." {
		t.Fatalf("expected playlist emptied, got %d videos", len(m.videos))
	}
}

func TestTUIPlayAction(t *testing.T) {
	m := loadedModel(t)
	args := stubPlayer(t, nil)
	m = openActions(t, m, MenuAction{Kind: MenuBrowseAll})
	m, cmd := selectAction(t, m, ActionPlay)
	if cmd == nil || len(*args) == 0 {
		t.Fatalf("expected the player to be launched")
	}
	if !m.videos[0].IsSeen {
		t.Fatalf("expected the played video marked seen")
	}
	m, _ = press(t, m, playerDoneMsg{err: errors.New("exit status 1")})
	if m.app.status != "Player exited: exit status 1" {
		t.Fatalf("unexpected status %q", m.app.status)
	}

	stubPlayer(t, errors.New("missing"))
	m, _ = press(t, m, enterKey)
	if _, cmd := selectAction(t, m, ActionPlay); cmd != nil {
		t.Fatalf("no command when the player is missing")
	}
}

func TestTUIOpenAndCopyActions(t *testing.T) {
	m := loadedModel(t)
	var opened, copied string
	m.app.openURL = func(url string) error { opened = url; return nil }
	m.app.copyText = func(text string) error { copied = text; return nil }

	m = openActions(t, m, MenuAction{Kind: MenuBrowseAll})
	m, _ = selectAction(t, m, ActionOpenBrowser)
	if opened != videoURL("a1") || !m.videos[0].IsSeen || m.app.status != "Opened in browser" {
		t.Fatalf("unexpected open result %q %q", opened, m.app.status)
	}
	m, _ = press(t, m, enterKey)
	m, _ = selectAction(t, m, ActionCopyLink)
	if copied != videoURL("a1") || m.app.status != "Link copied to clipboard" {
		t.Fatalf("unexpected copy result %q", copied)
	}
	m, _ = press(t, m, enterKey)
	m, _ = press(t, m, runes("q"))
	if m.screen != screenVideos {
		t.Fatalf("q backs out of the action menu")
	}
}

func TestTUIAddToNewPlaylist(t *testing.T) {
	m := loadedModel(t)
	m.app.config.MultiPlaylists = true
	m = openActions(t, m, MenuAction{Kind: MenuBrowseAll})
	m, _ = selectAction(t, m, ActionAddToPlaylist)
	if m.screen != screenPlaylistPick || m.pending == nil {
		t.Fatalf("expected playlist picker")
	}
	if opts := m.options(); len(opts) != 1 || opts[0] != "+ Create new playlist" {
		t.Fatalf("unexpected picker options %v", opts)
	}
	m, _ = press(t, m, enterKey)
	if m.inputMode != inputNewPlaylist {
		t.Fatalf("expected new playlist input")
	}
	if view := ansi.Strip(m.View()); !strings.Contains(view, "New Playlist") {
		t.Fatalf("expected input overlay, got %s", view)
	}
	m.input.SetValue("Mix")
	m, _ = press(t, m, enterKey)
	if m.inputMode != inputNone || m.screen != screenVideos || m.pending != nil {
		t.Fatalf("expected input closed and listing restored")
	}
	if m.app.PlaylistCounts()["Mix"] != 1 {
		t.Fatalf("expected video added to the new playlist")
	}

	m, _ = press(t, m, downKey)
	m, _ = press(t, m, enterKey)
	m, _ = selectAction(t, m, ActionAddToPlaylist)
	m, _ = press(t, m, enterKey)
	if m.screen != screenVideos || m.app.PlaylistCounts()["Mix"] != 2 {
		t.Fatalf("expected second video added to existing playlist")
	}
}

func TestTUIInputCancel(t *testing.T) {
	m := loadedModel(t)
	m, _ = m.dispatch(MenuAction{Kind: MenuAddChannel})
	if m.inputMode != inputAddChannel {
		t.Fatalf("expected add channel input")
	}
	m, _ = press(t, m, runes("x"))
	if m.input.Value() != "x" {
		t.Fatalf("expected typed text in the input, got %q", m.input.Value())
	}
	m, _ = press(t, m, escKey)
	if m.inputMode != inputNone || m.app.status != "Input cancelled" {
		t.Fatalf("expected input cancelled")
	}
	m, _ = m.dispatch(MenuAction{Kind: MenuAddChannel})
	m, cmd := press(t, m, enterKey)
	if cmd != nil || m.app.status != "Input cancelled" {
		t.Fatalf("empty input is a cancel")
	}
}

func TestTUIAddChannel(t *testing.T) {
	m := loadedModel(t)
	gammaURL := "https://feeds.test/gamma.xml"
	m.app.fetcher.client = clientForFeeds(map[string]string{
		gammaURL: atomFixture("Gamma", fixtureEntry{id: "g1", title: "G", published: time.Now()}),
	})
	m, _ = m.dispatch(MenuAction{Kind: MenuAddChannel})
	m.input.SetValue(gammaURL)
	m, cmd := press(t, m, enterKey)
	if cmd == nil || !m.loading {
		t.Fatalf("expected channel probe to start")
	}
	m, cmd = press(t, m, cmd())
	if m.app.status != "Added: Gamma" || cmd == nil {
		t.Fatalf("expected channel added and refresh started, got %q", m.app.status)
	}
	if channels := m.app.Channels(); len(channels) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(channels))
	}

	m, cmd = press(t, m, channelResultMsg{err: errors.New("boom")})
	if cmd != nil || m.loading || m.app.status != "Error: Not a valid RSS feed." {
		t.Fatalf("unexpected failure handling %q", m.app.status)
	}
}

func TestTUISettings(t *testing.T) {
	m := loadedModel(t)
	m, _ = m.dispatch(MenuAction{Kind: MenuSettings})
	if opts := m.options(); len(opts) != 3 || opts[0] != "[x] Show shorts" || opts[2] != "[ ] Multiple playlists" {
		t.Fatalf("unexpected settings %v", opts)
	}
	m, _ = press(t, m, enterKey)
	if m.app.config.ShowShorts || m.app.status != "Settings saved" {
		t.Fatalf("expected show shorts toggled off")
	}
	m, _ = press(t, m, downKey)
	m, _ = press(t, m, downKey)
	m, _ = press(t, m, enterKey)
	if !m.app.config.MultiPlaylists {
		t.Fatalf("expected multi playlists on")
	}
	m, _ = press(t, m, escKey)
	if m.screen != screenMain || m.menu[0].Label != "All videos (3 unseen)" {
		t.Fatalf("expected dashboard after settings")
	}
	found := false
	for _, item := range m.menu {
		found = found || item.Action.Kind == MenuDeletePlaylist
	}
	if !found {
		t.Fatalf("expected delete playlist entry after enabling multi playlists")
	}
}

func TestTUIRemoveChannel(t *testing.T) {
	m := loadedModel(t)
	m, _ = m.dispatch(MenuAction{Kind: MenuDeleteChannel})
	if opts := m.options(); len(opts) != 2 {
		t.Fatalf("unexpected channel options %v", opts)
	}
	m, cmd := press(t, m, enterKey)
	if cmd == nil || m.screen != screenMain || m.app.status != "Channel removed: Channel 0" {
		t.Fatalf("expected removal followed by refresh, got %q", m.app.status)
	}
	m, _ = press(t, m, cmd())
	if names := m.app.ChannelNames(); len(names) != 1 || names[0] != "Beta" {
		t.Fatalf("unexpected channels after removal %v", names)
	}
}

func TestTUIDeletePlaylist(t *testing.T) {
	m := loadedModel(t)
	m.app.config.MultiPlaylists = true
	m.app.CreatePlaylist("Music")
	m.app.CreatePlaylist("Podcasts")
	m, _ = m.dispatch(MenuAction{Kind: MenuDeletePlaylist})
	if opts := m.options(); len(opts) != 2 || opts[0] != "Music (0)" {
		t.Fatalf("unexpected playlist options %v", opts)
	}
	m, _ = press(t, m, downKey)
	m, _ = press(t, m, enterKey)
	if m.app.status != "Playlist 'Podcasts' deleted." || m.optionCursor != 0 {
		t.Fatalf("unexpected delete state %q %d", m.app.status, m.optionCursor)
	}
	m, _ = press(t, m, escKey)
	if m.screen != screenMain {
		t.Fatalf("expected dashboard")
	}
}

func TestTUIMarkAllAndRefresh(t *testing.T) {
	m := loadedModel(t)
	m, _ = m.dispatch(MenuAction{Kind: MenuMarkAllSeen})
	if m.menu[0].Label != "All videos (0 unseen)" {
		t.Fatalf("expected counts cleared, got %q", m.menu[0].Label)
	}
	m, cmd := press(t, m, runes("r"))
	if cmd == nil || !m.loading {
		t.Fatalf("expected refresh to start")
	}
	if _, again := m.dispatch(MenuAction{Kind: MenuRefresh}); again != nil {
		t.Fatalf("a refresh already in flight is not restarted")
	}
	m, _ = press(t, m, cmd())
	if m.loading || m.app.UnseenCount() != 0 {
		t.Fatalf("seen state must survive a refresh")
	}
}

func TestTUIHelpOverlay(t *testing.T) {
	m := loadedModel(t)
	m, _ = m.dispatch(MenuAction{Kind: MenuBrowseAll})
	m, _ = press(t, m, runes("?"))
	if m.screen != screenHelp || m.returnTo != screenVideos {
		t.Fatalf("expected help over the listing")
	}
	view := ansi.Strip(m.View())
	if !strings.Contains(view, "Keys") || !strings.Contains(view, "mark seen") {
		t.Fatalf("unexpected help view %s", view)
	}
	m, _ = press(t, m, escKey)
	if m.screen != screenVideos {
		t.Fatalf("expected help to return to the listing")
	}
}

func TestTUIView(t *testing.T) {
	m := loadedModel(t)
	view := ansi.Strip(m.View())
	for _, want := range []string{"ytRSS", "All videos (3 unseen)", "[Watch Later] (0)", "Alpha (2)", "Press ? for help", "Loaded 3 videos"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}

	m, _ = m.dispatch(MenuAction{Kind: MenuChannel, Name: "Beta"})
	m.loading = false
	view = ansi.Strip(m.View())
	if !strings.Contains(view, "Beta (1)") || !strings.Contains(view, "Beta one") || !strings.Contains(view, UnknownDuration) {
		t.Fatalf("unexpected listing view:\n%s", view)
	}
	if !strings.Contains(view, "●") {
		t.Fatalf("expected unseen marker")
	}

	m, _ = m.dispatch(MenuAction{Kind: MenuPlaylist, Name: WatchLaterPlaylist})
	if view := ansi.Strip(m.View()); !strings.Contains(view, "No videos.") {
		t.Fatalf("expected empty playlist view:\n%s", view)
	}
}

func TestRenderVideoRowTruncates(t *testing.T) {
	m := loadedModel(t)
	video := Video{ID: "x", Title: strings.Repeat("long title ", 20), Channel: "Channel", Duration: "1:02:03"}
	row := ansi.Strip(m.renderVideoRow(video, true, 80))
	if width := ansi.StringWidth(row); width > 80 {
		t.Fatalf("row too wide: %d", width)
	}
	if !strings.Contains(row, "…") || !strings.HasPrefix(row, "▸ ●") {
		t.Fatalf("unexpected row %q", row)
	}
}

func TestWindowStartAndClamp(t *testing.T) {
	if windowStart(0, 5, 10) != 0 || windowStart(12, 20, 5) != 8 || windowStart(19, 20, 5) != 15 {
		t.Fatalf("unexpected window starts")
	}
	if clamp(5, 0, -1) != 0 || clamp(-1, 0, 3) != 0 || clamp(9, 0, 3) != 3 || clamp(2, 0, 3) != 2 {
		t.Fatalf("unexpected clamp results")
	}
}

func TestRunTUI(t *testing.T) {
	app := newTestApp(t, nil)
	origRun := runTeaProgram
	t.Cleanup(func() { runTeaProgram = origRun })
	called := false
	runTeaProgram = func(*tea.Program) (tea.Model, error) {
		called = true
		return nil, errors.New("no tty")
	}
	if err := RunTUI(app); err == nil || !called {
		t.Fatalf("expected the program runner to be used")
	}
}

func TestDefaultRunTeaProgram(t *testing.T) {
	origExec := programExecute
	t.Cleanup(func() { programExecute = origExec })
	var got *tea.Program
	programExecute = func(program *tea.Program) (tea.Model, error) {
		got = program
		return nil, nil
	}
	program := tea.NewProgram(nil)
	if _, err := defaultRunTeaProgram(program); err != nil || got != program {
		t.Fatalf("expected program to be executed")
	}
}

func TestRefreshCmdUsesSubscriptions(t *testing.T) {
	app := newTestApp(t, twoChannelFeeds(time.Now()))
	subscribeAll(t, app, "https://feeds.test/alpha")
	msg, ok := refreshCmd(app)().(refreshResultMsg)
	if !ok || msg.cycle.feeds != 1 || len(msg.cycle.result.Videos) != 2 {
		t.Fatalf("unexpected cycle %+v", msg.cycle)
	}
	if len(app.Videos()) != 0 {
		t.Fatalf("collecting a cycle must not touch session state")
	}
}
