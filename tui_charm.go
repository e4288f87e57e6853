package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type screen int

const (
	screenMain screen = iota
	screenVideos
	screenActions
	screenPlaylistPick
	screenSettings
	screenChannels
	screenPlaylists
	screenHelp
)

type inputMode int

const (
	inputNone inputMode = iota
	inputAddChannel
	inputNewPlaylist
)

type spinnerTickMsg struct{}

type refreshResultMsg struct {
	cycle cycle
}

type enrichResultMsg struct {
	seq    int
	videos []Video
}

type channelResultMsg struct {
	feed ParsedFeed
	err  error
}

type playerDoneMsg struct {
	err error
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Back    key.Binding
	Seen    key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/up", "move up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/down", "move down")),
		Select:  key.NewBinding(key.WithKeys("enter", "l", "right"), key.WithHelp("enter", "select")),
		Back:    key.NewBinding(key.WithKeys("esc", "h", "left", "backspace"), key.WithHelp("esc", "back")),
		Seen:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "mark seen")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh feeds")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit / back")),
	}
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Back, k.Seen, k.Refresh, k.Help, k.Quit}
}

type tuiModel struct {
	app           *App
	keys          keyMap
	theme         Theme
	width         int
	height        int
	screen        screen
	returnTo      screen
	menu          []MenuItem
	menuCursor    int
	listTitle     string
	playlist      string
	videos        []Video
	videoCursor   int
	actions       []VideoAction
	optionCursor  int
	input         textinput.Model
	inputMode     inputMode
	pending       *Video
	loading       bool
	loadingLabel  string
	enrichSeq     int
	spinnerIndex  int
	spinnerFrames []string
}

var (
	teaNewProgram  = tea.NewProgram
	runTeaProgram  = defaultRunTeaProgram
	programExecute = func(program *tea.Program) (tea.Model, error) { return program.Run() }
	themeClock     = time.Now
)

func defaultRunTeaProgram(program *tea.Program) (tea.Model, error) {
	return programExecute(program)
}

func RunTUI(app *App) error {
	model := newTUIModel(app)
	program := teaNewProgram(model, tea.WithAltScreen())
	_, err := runTeaProgram(program)
	return err
}

func newTUIModel(app *App) tuiModel {
	input := textinput.New()
	input.CharLimit = 512
	input.Width = 50
	input.Prompt = "> "
	m := tuiModel{
		app:           app,
		keys:          defaultKeyMap(),
		theme:         currentTheme(themeClock(), app.config.SeasonalThemes),
		input:         input,
		loading:       true,
		loadingLabel:  "Fetching feeds...",
		spinnerFrames: []string{"|", "/", "-", "\\"},
	}
	m.menu = BuildMainMenu(app)
	return m
}

func spinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(spinnerTick(), refreshCmd(m.app))
}

func refreshCmd(app *App) tea.Cmd {
	return func() tea.Msg {
		return refreshResultMsg{cycle: app.collectCycle(context.Background())}
	}
}

func enrichCmd(app *App, seq int, videos []Video) tea.Cmd {
	resolver := app.resolver
	batch := append([]Video(nil), videos...)
	return func() tea.Msg {
		resolver.ResolveBatch(context.Background(), batch)
		return enrichResultMsg{seq: seq, videos: batch}
	}
}

func addChannelCmd(app *App, input string) tea.Cmd {
	return func() tea.Msg {
		feed, err := app.probeChannel(context.Background(), input)
		return channelResultMsg{feed: feed, err: err}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case spinnerTickMsg:
		if len(m.spinnerFrames) > 0 {
			m.spinnerIndex = (m.spinnerIndex + 1) % len(m.spinnerFrames)
		}
		return m, spinnerTick()
	case refreshResultMsg:
		m.loading = false
		m.app.applyCycle(msg.cycle)
		m.rebuildMenu()
		if m.screen != screenMain {
			m.screen = screenMain
		}
		return m, nil
	case enrichResultMsg:
		if msg.seq != m.enrichSeq {
			m.app.applyDurations(msg.videos)
			return m, nil
		}
		m.loading = false
		m.videos = m.app.ApplyEnrichment(msg.videos)
		m.videoCursor = clamp(m.videoCursor, 0, len(m.videos)-1)
		return m, nil
	case channelResultMsg:
		m.loading = false
		if err := m.app.subscribe(msg.feed, msg.err); err != nil {
			return m, nil
		}
		m.loading = true
		m.loadingLabel = "Fetching feeds..."
		return m, refreshCmd(m.app)
	case playerDoneMsg:
		if msg.err != nil {
			m.app.status = "Player exited: " + msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.inputMode != inputNone {
		switch msg.String() {
		case "esc":
			m = m.stopInput()
			m.app.status = "Input cancelled"
			return m, nil
		case "enter":
			return m.commitInput()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	if m.screen == screenHelp {
		if key.Matches(msg, m.keys.Back, m.keys.Quit, m.keys.Help, m.keys.Select) {
			m.screen = m.returnTo
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.returnTo = m.screen
		m.screen = screenHelp
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, m.keys.Refresh) && m.screen == screenMain:
		return m.dispatch(MenuAction{Kind: MenuRefresh})
	}

	switch m.screen {
	case screenMain:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			if m.menuCursor < len(m.menu) {
				return m.dispatch(m.menu[m.menuCursor].Action)
			}
		}
	case screenVideos:
		switch {
		case key.Matches(msg, m.keys.Back, m.keys.Quit):
			m.enrichSeq++
			m.loading = false
			m.rebuildMenu()
			m.screen = screenMain
		case key.Matches(msg, m.keys.Seen):
			if video, ok := m.selectedVideo(); ok && m.app.MarkSeen(video) {
				m.markListedSeen(video.ID)
				m.app.status = "Marked as seen"
			}
		case key.Matches(msg, m.keys.Select):
			if _, ok := m.selectedVideo(); ok {
				m.actions = videoActions(m.playlist, m.app.config.MultiPlaylists)
				m.optionCursor = 0
				m.screen = screenActions
			}
		}
	case screenActions:
		switch {
		case key.Matches(msg, m.keys.Back, m.keys.Quit):
			m.screen = screenVideos
		case key.Matches(msg, m.keys.Select):
			if m.optionCursor < len(m.actions) {
				return m.runAction(m.actions[m.optionCursor])
			}
		}
	case screenPlaylistPick:
		switch {
		case key.Matches(msg, m.keys.Back, m.keys.Quit):
			m.screen = screenActions
		case key.Matches(msg, m.keys.Select):
			return m.pickPlaylist()
		}
	case screenSettings:
		switch {
		case key.Matches(msg, m.keys.Back, m.keys.Quit):
			m.rebuildMenu()
			m.screen = screenMain
		case key.Matches(msg, m.keys.Select):
			if m.app.Toggle(Setting(m.optionCursor)) {
				m.theme = currentTheme(themeClock(), m.app.config.SeasonalThemes)
				m.app.status = "Settings saved"
			}
		}
	case screenChannels:
		switch {
		case key.Matches(msg, m.keys.Back, m.keys.Quit):
			m.screen = screenMain
		case key.Matches(msg, m.keys.Select):
			if err := m.app.RemoveChannel(m.optionCursor); err == nil {
				m.loading = true
				m.loadingLabel = "Fetching feeds..."
				m.screen = screenMain
				return m, refreshCmd(m.app)
			}
		}
	case screenPlaylists:
		switch {
		case key.Matches(msg, m.keys.Back, m.keys.Quit):
			m.rebuildMenu()
			m.screen = screenMain
		case key.Matches(msg, m.keys.Select):
			playlists := m.app.UserPlaylists()
			if m.optionCursor < len(playlists) {
				m.app.DeletePlaylist(playlists[m.optionCursor].Name)
				m.optionCursor = clamp(m.optionCursor, 0, len(playlists)-2)
			}
		}
	}
	return m, nil
}

// dispatch is the single place a dashboard choice turns into behavior.
func (m tuiModel) dispatch(action MenuAction) (tuiModel, tea.Cmd) {
	switch action.Kind {
	case MenuBrowseAll:
		return m.openListing("All videos", "", m.app.BrowseAll())
	case MenuPlaylist:
		return m.openListing(action.Name, action.Name, m.app.PlaylistVideos(action.Name))
	case MenuChannel:
		return m.openListing(action.Name, "", m.app.ChannelVideos(action.Name))
	case MenuRefresh:
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.loadingLabel = "Fetching feeds..."
		return m, refreshCmd(m.app)
	case MenuSettings:
		m.optionCursor = 0
		m.screen = screenSettings
	case MenuAddChannel:
		m = m.startInput(inputAddChannel, "Channel or feed URL")
	case MenuDeleteChannel:
		m.optionCursor = 0
		m.screen = screenChannels
	case MenuDeletePlaylist:
		m.optionCursor = 0
		m.screen = screenPlaylists
	case MenuMarkAllSeen:
		m.app.MarkAllSeen()
		m.rebuildMenu()
	case MenuHelp:
		m.returnTo = m.screen
		m.screen = screenHelp
	case MenuQuit:
		return m, tea.Quit
	}
	return m, nil
}

func (m tuiModel) openListing(title, playlist string, videos []Video) (tuiModel, tea.Cmd) {
	m.listTitle = title
	m.playlist = playlist
	m.videos = videos
	m.videoCursor = 0
	m.screen = screenVideos
	m.enrichSeq++
	if !hasUnknownDuration(videos) {
		return m, nil
	}
	m.loading = true
	m.loadingLabel = "Loading durations..."
	return m, enrichCmd(m.app, m.enrichSeq, videos)
}

func hasUnknownDuration(videos []Video) bool {
	for i, video := range videos {
		if i >= enrichBatchSize {
			break
		}
		if video.Duration == UnknownDuration {
			return true
		}
	}
	return false
}

func (m tuiModel) runAction(action VideoAction) (tuiModel, tea.Cmd) {
	video, ok := m.selectedVideo()
	if !ok {
		m.screen = screenVideos
		return m, nil
	}
	m.screen = screenVideos
	switch action {
	case ActionPlay:
		cmd, err := m.app.Play(video)
		m.markListedSeen(video.ID)
		if err != nil {
			return m, nil
		}
		return m, tea.ExecProcess(cmd, func(err error) tea.Msg {
			return playerDoneMsg{err: err}
		})
	case ActionWatchLater:
		m.app.AddToPlaylist(WatchLaterPlaylist, video)
	case ActionAddToPlaylist:
		m.pending = &video
		m.optionCursor = 0
		m.screen = screenPlaylistPick
	case ActionOpenBrowser:
		if m.app.OpenInBrowser(video) {
			m.markListedSeen(video.ID)
			m.app.status = "Opened in browser"
		}
	case ActionRemove:
		if m.app.RemoveFromPlaylist(m.playlist, video.ID) {
			m.videos = m.app.PlaylistVideos(m.playlist)
			m.videoCursor = clamp(m.videoCursor, 0, len(m.videos)-1)
		}
	case ActionCopyLink:
		m.app.CopyLink(video)
	}
	return m, nil
}

func (m tuiModel) pickPlaylist() (tuiModel, tea.Cmd) {
	playlists := m.app.UserPlaylists()
	if m.optionCursor >= len(playlists) {
		return m.startInput(inputNewPlaylist, "New playlist name"), nil
	}
	if m.pending != nil {
		m.app.AddToPlaylist(playlists[m.optionCursor].Name, *m.pending)
	}
	m.pending = nil
	m.screen = screenVideos
	return m, nil
}

func (m tuiModel) selectedVideo() (Video, bool) {
	if m.videoCursor < 0 || m.videoCursor >= len(m.videos) {
		return Video{}, false
	}
	return m.videos[m.videoCursor], true
}

func (m *tuiModel) markListedSeen(id string) {
	for i := range m.videos {
		if m.videos[i].ID == id {
			m.videos[i].IsSeen = true
		}
	}
}

func (m *tuiModel) rebuildMenu() {
	m.menu = BuildMainMenu(m.app)
	m.menuCursor = clamp(m.menuCursor, 0, len(m.menu)-1)
}

func (m *tuiModel) moveCursor(delta int) {
	switch m.screen {
	case screenMain:
		m.menuCursor = clamp(m.menuCursor+delta, 0, len(m.menu)-1)
	case screenVideos:
		m.videoCursor = clamp(m.videoCursor+delta, 0, len(m.videos)-1)
	default:
		m.optionCursor = clamp(m.optionCursor+delta, 0, len(m.options())-1)
	}
}

// options lists the rows of the secondary screens.
func (m tuiModel) options() []string {
	switch m.screen {
	case screenActions:
		labels := make([]string, len(m.actions))
		for i, action := range m.actions {
			labels[i] = action.String()
		}
		return labels
	case screenPlaylistPick:
		labels := []string{}
		for _, playlist := range m.app.UserPlaylists() {
			labels = append(labels, playlist.Name)
		}
		return append(labels, "+ Create new playlist")
	case screenSettings:
		cfg := m.app.config
		return []string{
			checkbox(cfg.ShowShorts) + " Show shorts",
			checkbox(cfg.SeasonalThemes) + " Seasonal themes",
			checkbox(cfg.MultiPlaylists) + " Multiple playlists",
		}
	case screenChannels:
		labels := []string{}
		for _, channel := range m.app.Channels() {
			labels = append(labels, channel.Title)
		}
		return labels
	case screenPlaylists:
		counts := m.app.PlaylistCounts()
		labels := []string{}
		for _, playlist := range m.app.UserPlaylists() {
			labels = append(labels, fmt.Sprintf("%s (%d)", playlist.Name, counts[playlist.Name]))
		}
		return labels
	}
	return nil
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m tuiModel) startInput(mode inputMode, placeholder string) tuiModel {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	m.input.Focus()
	return m
}

func (m tuiModel) stopInput() tuiModel {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.SetValue("")
	return m
}

func (m tuiModel) commitInput() (tuiModel, tea.Cmd) {
	mode := m.inputMode
	value := strings.TrimSpace(m.input.Value())
	m = m.stopInput()
	if value == "" {
		m.app.status = "Input cancelled"
		return m, nil
	}
	switch mode {
	case inputAddChannel:
		m.loading = true
		m.loadingLabel = "Resolving channel..."
		m.app.status = "Resolving channel..."
		return m, addChannelCmd(m.app, value)
	case inputNewPlaylist:
		if m.app.CreatePlaylist(value) && m.pending != nil {
			m.app.AddToPlaylist(value, *m.pending)
		}
		m.pending = nil
		m.screen = screenVideos
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.screen == screenHelp {
		return m.renderHelpOverlay()
	}
	if m.inputMode != inputNone {
		return m.renderInputOverlay()
	}
	header := m.theme.Title.Render(m.theme.Banner)
	bodyHeight := m.height - 3
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	var body string
	switch m.screen {
	case screenMain:
		labels := make([]string, len(m.menu))
		for i, item := range m.menu {
			labels[i] = item.Label
		}
		body = m.renderOptions("", labels, m.menuCursor, bodyHeight)
	case screenVideos:
		body = m.renderVideos(bodyHeight)
	case screenActions:
		title := ""
		if video, ok := m.selectedVideo(); ok {
			title = CleanTitle(video.Title)
		}
		body = m.renderOptions(title, m.options(), m.optionCursor, bodyHeight)
	case screenPlaylistPick:
		body = m.renderOptions("Add to playlist", m.options(), m.optionCursor, bodyHeight)
	case screenSettings:
		body = m.renderOptions("Settings", m.options(), m.optionCursor, bodyHeight)
	case screenChannels:
		body = m.renderOptions("Remove channel", m.options(), m.optionCursor, bodyHeight)
	case screenPlaylists:
		body = m.renderOptions("Delete playlist", m.options(), m.optionCursor, bodyHeight)
	}
	body = lipgloss.NewStyle().Height(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusBar(m.width))
}

func (m tuiModel) renderOptions(title string, labels []string, cursor int, height int) string {
	lines := []string{}
	if title != "" {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Render(ansi.Truncate(title, m.width-2, "…")))
		height--
	}
	if len(labels) == 0 {
		return strings.Join(append(lines, m.theme.Seen.Render("  (nothing here)")), "\n")
	}
	start := windowStart(cursor, len(labels), height)
	for i := start; i < len(labels) && i < start+height; i++ {
		label := ansi.Truncate(labels[i], m.width-4, "…")
		if i == cursor {
			lines = append(lines, m.theme.Cursor.Render("▸ "+label))
			continue
		}
		lines = append(lines, "  "+label)
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderVideos(height int) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%d)", m.listTitle, len(m.videos)))}
	height--
	if len(m.videos) == 0 {
		return strings.Join(append(lines, m.theme.Seen.Render("  No videos.")), "\n")
	}
	start := windowStart(m.videoCursor, len(m.videos), height)
	for i := start; i < len(m.videos) && i < start+height; i++ {
		lines = append(lines, m.renderVideoRow(m.videos[i], i == m.videoCursor, m.width))
	}
	return strings.Join(lines, "\n")
}

// renderVideoRow lays out one listing row: cursor, unseen marker,
// right-aligned duration, title and channel.
func (m tuiModel) renderVideoRow(video Video, selected bool, width int) string {
	cursor := "  "
	if selected {
		cursor = "▸ "
	}
	marker := "  "
	if !video.IsSeen {
		marker = "● "
	}
	duration := m.theme.Duration.Render(fmt.Sprintf("%8s", video.Duration))
	channelWidth := clamp(width/4, 8, 24)
	titleWidth := width - channelWidth - 16
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := padRight(ansi.Truncate(CleanTitle(video.Title), titleWidth, "…"), titleWidth)
	channel := ansi.Truncate(video.Channel, channelWidth, "…")
	textStyle := m.theme.Unseen
	if video.IsSeen {
		textStyle = m.theme.Seen
	}
	if selected {
		textStyle = m.theme.Cursor
	}
	return textStyle.Render(cursor+marker) + duration + "  " + textStyle.Render(title) + "  " + m.theme.Seen.Render(channel)
}

func padRight(value string, width int) string {
	if gap := width - ansi.StringWidth(value); gap > 0 {
		return value + strings.Repeat(" ", gap)
	}
	return value
}

func windowStart(cursor, total, height int) int {
	if height <= 0 || total <= height {
		return 0
	}
	start := cursor - height + 1
	if start < 0 {
		start = 0
	}
	if start > total-height {
		start = total - height
	}
	return start
}

func (m tuiModel) renderStatusBar(width int) string {
	style := m.theme.Status.Width(width).Padding(0, 1)
	status := m.app.status
	if m.loading {
		spinner := ""
		if len(m.spinnerFrames) > 0 {
			spinner = m.spinnerFrames[m.spinnerIndex] + " "
		}
		status = spinner + m.loadingLabel
	} else if status == "" {
		status = "Ready"
	}
	tip := m.tooltipText()
	padding := width - ansi.StringWidth(status) - ansi.StringWidth(tip) - 2
	if padding < 1 {
		padding = 1
	}
	return style.Render(status + strings.Repeat(" ", padding) + tip)
}

func (m tuiModel) tooltipText() string {
	if m.inputMode != inputNone {
		return "Enter to confirm, Esc to cancel"
	}
	return "Press ? for help"
}

func (m tuiModel) renderHelpOverlay() string {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2).BorderForeground(m.theme.Border)
	content := []string{"Keys", ""}
	for _, binding := range m.keys.bindings() {
		help := binding.Help()
		content = append(content, fmt.Sprintf("%-10s %s", help.Key, help.Desc))
	}
	content = append(content,
		"",
		"Videos marked ● are unseen. Playing or opening",
		"a video marks it seen; playback reads the link",
		"from the clipboard.",
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box.Render(strings.Join(content, "\n")))
}

func (m tuiModel) renderInputOverlay() string {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2).BorderForeground(m.theme.Border)
	content := m.inputPrompt() + "\n\n" + m.input.View()
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box.Render(content))
}

func (m tuiModel) inputPrompt() string {
	switch m.inputMode {
	case inputAddChannel:
		return "Add Channel"
	case inputNewPlaylist:
		return "New Playlist"
	default:
		return "Input"
	}
}

func clamp(val, min, max int) int {
	if max < min {
		return min
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
