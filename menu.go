package main

import "fmt"

type MenuKind int

const (
	MenuBrowseAll MenuKind = iota
	MenuPlaylist
	MenuChannel
	MenuRefresh
	MenuSettings
	MenuAddChannel
	MenuDeleteChannel
	MenuDeletePlaylist
	MenuMarkAllSeen
	MenuHelp
	MenuQuit
)

// MenuAction is what a dashboard entry does. Name carries the playlist or
// channel for the kinds that target one.
type MenuAction struct {
	Kind MenuKind
	Name string
}

type MenuItem struct {
	Label  string
	Action MenuAction
}

// BuildMainMenu lists the dashboard: all videos, playlists, channels with
// their unseen counts, then the management entries.
func BuildMainMenu(app *App) []MenuItem {
	items := []MenuItem{{
		Label:  fmt.Sprintf("All videos (%d unseen)", app.UnseenCount()),
		Action: MenuAction{Kind: MenuBrowseAll},
	}}

	counts := app.PlaylistCounts()
	for _, playlist := range app.Playlists() {
		if !playlist.IsSystem && !app.config.MultiPlaylists {
			continue
		}
		items = append(items, MenuItem{
			Label:  fmt.Sprintf("[%s] (%d)", playlist.Name, counts[playlist.Name]),
			Action: MenuAction{Kind: MenuPlaylist, Name: playlist.Name},
		})
	}

	for _, name := range app.ChannelNames() {
		label := name
		if unseen := app.ChannelUnseen(name); unseen > 0 {
			label = fmt.Sprintf("%s (%d)", name, unseen)
		}
		items = append(items, MenuItem{Label: label, Action: MenuAction{Kind: MenuChannel, Name: name}})
	}

	items = append(items,
		MenuItem{Label: "Refresh feeds", Action: MenuAction{Kind: MenuRefresh}},
		MenuItem{Label: "Add channel", Action: MenuAction{Kind: MenuAddChannel}},
		MenuItem{Label: "Remove channel", Action: MenuAction{Kind: MenuDeleteChannel}},
	)
	if app.config.MultiPlaylists {
		items = append(items, MenuItem{Label: "Delete playlist", Action: MenuAction{Kind: MenuDeletePlaylist}})
	}
	items = append(items,
		MenuItem{Label: "Mark all as seen", Action: MenuAction{Kind: MenuMarkAllSeen}},
		MenuItem{Label: "Settings", Action: MenuAction{Kind: MenuSettings}},
		MenuItem{Label: "Help", Action: MenuAction{Kind: MenuHelp}},
		MenuItem{Label: "Quit", Action: MenuAction{Kind: MenuQuit}},
	)
	return items
}

// VideoAction is one entry of the per-video action menu.
type VideoAction int

const (
	ActionPlay VideoAction = iota
	ActionWatchLater
	ActionAddToPlaylist
	ActionOpenBrowser
	ActionRemove
	ActionCopyLink
)

func (a VideoAction) String() string {
	switch a {
	case ActionPlay:
		return "Play"
	case ActionWatchLater:
		return "Add to " + WatchLaterPlaylist
	case ActionAddToPlaylist:
		return "Add to playlist"
	case ActionOpenBrowser:
		return "Open in browser"
	case ActionRemove:
		return "Remove from playlist"
	case ActionCopyLink:
		return "Copy link"
	}
	return "Unknown"
}

// videoActions lists the actions available for a video. Removal only
// applies inside a playlist, and picking a named playlist needs
// multi-playlist mode.
func videoActions(inPlaylist string, multi bool) []VideoAction {
	actions := []VideoAction{ActionPlay}
	if inPlaylist != WatchLaterPlaylist {
		actions = append(actions, ActionWatchLater)
	}
	if multi {
		actions = append(actions, ActionAddToPlaylist)
	}
	actions = append(actions, ActionOpenBrowser)
	if inPlaylist != "" {
		actions = append(actions, ActionRemove)
	}
	return append(actions, ActionCopyLink)
}
