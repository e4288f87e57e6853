package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

const exportStateVersion = 1

var (
	stateMarshalIndent = json.MarshalIndent
	stateWriteFile     = renameio.WriteFile
	stateReadFile      = os.ReadFile
	stateUnmarshal     = json.Unmarshal
)

// ExportState is the on-disk backup format for everything the store keeps.
type ExportState struct {
	Version      int              `json:"version"`
	ExportedAt   time.Time        `json:"exported_at"`
	Seen         []SeenRecord     `json:"seen"`
	Durations    []CachedDuration `json:"durations"`
	Playlists    []Playlist       `json:"playlists"`
	Videos       []VideoRecord    `json:"videos"`
	PlaylistItem []PlaylistItem   `json:"playlist_items"`
}

func (s *Store) ExportState(path string) error {
	if path == "" {
		return errors.New("missing export path")
	}
	durations := []CachedDuration{}
	for id, duration := range s.CachedDurations() {
		durations = append(durations, CachedDuration{VideoID: id, Duration: duration})
	}
	state := ExportState{
		Version:      exportStateVersion,
		ExportedAt:   nowUTC(),
		Seen:         s.SeenRecords(),
		Durations:    durations,
		Playlists:    s.Playlists(),
		Videos:       s.VideoRecords(),
		PlaylistItem: s.PlaylistItems(),
	}
	payload, err := stateMarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return stateWriteFile(path, payload, 0o600)
}

// ImportState replaces the store contents with a previous export.
func (s *Store) ImportState(path string) error {
	if path == "" {
		return errors.New("missing import path")
	}
	raw, err := stateReadFile(path)
	if err != nil {
		return err
	}
	var state ExportState
	if err := stateUnmarshal(raw, &state); err != nil {
		return err
	}
	if state.Version != exportStateVersion {
		return errors.New("unsupported export format")
	}
	tx, err := beginTx(s.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"playlist_items", "videos", "playlists", "video_metadata", "seen_videos"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	for _, seen := range state.Seen {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO seen_videos (video_id, title, seen_at) VALUES (?, ?, ?)`,
			seen.VideoID, seen.Title, timeToUnix(seen.SeenAt)); err != nil {
			return err
		}
	}
	for _, cached := range state.Durations {
		if cached.Duration == "" || cached.Duration == UnknownDuration {
			continue
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO video_metadata (video_id, duration) VALUES (?, ?)`,
			cached.VideoID, cached.Duration); err != nil {
			return err
		}
	}
	for _, playlist := range state.Playlists {
		if _, err := tx.Exec(`INSERT INTO playlists (id, name, created_at, is_system_list) VALUES (?, ?, ?, ?)`,
			playlist.ID, playlist.Name, timeToUnix(playlist.CreatedAt), boolToInt(playlist.IsSystem)); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO playlists (name, created_at, is_system_list) VALUES (?, ?, 1)`,
		WatchLaterPlaylist, timeToUnix(nowUTC())); err != nil {
		return err
	}
	for _, video := range state.Videos {
		if _, err := tx.Exec(`INSERT INTO videos (video_id, title, channel, url, duration, is_shorts, published_at, first_seen) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			video.ID, video.Title, video.Channel, video.URL, video.Duration, boolToInt(video.IsShorts), timeToUnix(video.Published), timeToUnix(video.FirstSeen)); err != nil {
			return err
		}
	}
	for _, item := range state.PlaylistItem {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO playlist_items (playlist_id, video_id, added_at) VALUES (?, ?, ?)`,
			item.PlaylistID, item.VideoID, timeToUnix(item.AddedAt)); err != nil {
			return err
		}
	}
	return commitTx(tx)
}
