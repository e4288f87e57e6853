package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	channelFeedTemplate = "https://www.youtube.com/feeds/videos.xml?channel_id="
	channelLookupTime   = 60 * time.Second
)

// ChannelResolver turns a channel page URL into its feed URL using yt-dlp.
type ChannelResolver struct {
	ytdlpPath string
	log       zerolog.Logger
}

type ytdlpEntry struct {
	PlaylistChannelID string `json:"playlist_channel_id"`
	ChannelID         string `json:"channel_id"`
	PlaylistID        string `json:"playlist_id"`
}

func NewChannelResolver(ytdlpPath string, logger zerolog.Logger) *ChannelResolver {
	return &ChannelResolver{ytdlpPath: ytdlpPath, log: logger}
}

func looksLikeFeedURL(target string) bool {
	return strings.Contains(target, "xml") || strings.Contains(target, "feed")
}

// ResolveFeedURL returns the feed URL for a channel page. Inputs that
// already look like a feed, and any input the tool cannot resolve, are
// returned unchanged.
func (c *ChannelResolver) ResolveFeedURL(ctx context.Context, target string) string {
	if looksLikeFeedURL(target) {
		return target
	}
	ctx, cancel := context.WithTimeout(ctx, channelLookupTime)
	defer cancel()
	out, err := toolOutput(ctx, c.ytdlpPath, "--dump-json", "--flat-playlist", "--playlist-items", "1", target)
	if err != nil {
		c.log.Debug().Err(err).Str("url", target).Msg("channel lookup failed")
		return target
	}
	id := channelIDFromDump(out)
	if id == "" {
		return target
	}
	return channelFeedTemplate + id
}

func channelIDFromDump(out []byte) string {
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	if len(line) == 0 {
		return ""
	}
	var entry ytdlpEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return ""
	}
	id := firstNonEmpty(entry.PlaylistChannelID, entry.ChannelID, entry.PlaylistID)
	if !strings.HasPrefix(id, "UC") {
		return ""
	}
	return id
}
