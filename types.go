package main

import "time"

// UnknownDuration marks a video whose duration has not been resolved yet.
// It is never written to the duration cache.
const UnknownDuration = "??:??"

const (
	WatchLaterPlaylist = "Watch Later"
	videoIDPrefix      = "yt:video:"
)

type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	URL       string    `json:"url"`
	Duration  string    `json:"duration"`
	IsShorts  bool      `json:"is_shorts"`
	Published time.Time `json:"published"`
	IsSeen    bool      `json:"-"`
}

type SeenRecord struct {
	VideoID string    `json:"video_id"`
	Title   string    `json:"title"`
	SeenAt  time.Time `json:"seen_at"`
}

type CachedDuration struct {
	VideoID  string `json:"video_id"`
	Duration string `json:"duration"`
}

type Playlist struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	IsSystem  bool      `json:"is_system"`
}

type PlaylistItem struct {
	PlaylistID int       `json:"playlist_id"`
	VideoID    string    `json:"video_id"`
	AddedAt    time.Time `json:"added_at"`
}

// VideoRecord is the snapshot of a video taken when it was added to a playlist.
type VideoRecord struct {
	Video
	FirstSeen time.Time `json:"first_seen"`
}

type Channel struct {
	Title string
	URL   string
}
