package main

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shortsTag = "#shorts"

type Aggregator struct {
	fetcher *FeedFetcher
	log     zerolog.Logger
}

// Aggregation is the merged result of one refresh cycle.
type Aggregation struct {
	Videos    []Video
	ByChannel map[string][]Video
	Failed    int
}

func NewAggregator(fetcher *FeedFetcher, logger zerolog.Logger) *Aggregator {
	return &Aggregator{fetcher: fetcher, log: logger}
}

// Aggregate fetches every feed concurrently and merges the entries into one
// list, newest first. A feed that fails contributes nothing. When two feeds
// carry the same video id the copy from the later feed URL wins.
func (a *Aggregator) Aggregate(ctx context.Context, feedURLs []string, seen map[string]bool, durations map[string]string) Aggregation {
	parsed := make([]*ParsedFeed, len(feedURLs))
	var g errgroup.Group
	for i, feedURL := range feedURLs {
		g.Go(func() error {
			feed, err := a.fetcher.FetchFeed(ctx, feedURL)
			if err != nil {
				a.log.Warn().Err(err).Str("feed", feedURL).Msg("feed skipped")
				return nil
			}
			parsed[i] = &feed
			return nil
		})
	}
	_ = g.Wait()

	result := Aggregation{ByChannel: map[string][]Video{}}
	order := []string{}
	byID := map[string]Video{}
	for _, feed := range parsed {
		if feed == nil {
			result.Failed++
			continue
		}
		channel := CleanTitle(firstNonEmpty(feed.Title, "Unknown"))
		result.ByChannel[channel] = nil
		for _, entry := range feed.Entries {
			video, ok := normalizeEntry(entry, channel, seen, durations)
			if !ok {
				continue
			}
			if _, exists := byID[video.ID]; !exists {
				order = append(order, video.ID)
			}
			byID[video.ID] = video
		}
	}

	result.Videos = make([]Video, 0, len(order))
	for _, id := range order {
		result.Videos = append(result.Videos, byID[id])
	}
	sortNewestFirst(result.Videos)
	for _, video := range result.Videos {
		result.ByChannel[video.Channel] = append(result.ByChannel[video.Channel], video)
	}
	a.log.Info().Int("feeds", len(feedURLs)).Int("failed", result.Failed).Int("videos", len(result.Videos)).Msg("aggregated")
	return result
}

func normalizeEntry(entry FeedEntry, channel string, seen map[string]bool, durations map[string]string) (Video, bool) {
	if entry.Published.IsZero() {
		return Video{}, false
	}
	id := strings.TrimPrefix(entry.ID, videoIDPrefix)
	if id == "" {
		id = entry.Link
	}
	if id == "" {
		return Video{}, false
	}
	duration := durations[id]
	if duration == "" || duration == UnknownDuration {
		duration = firstNonEmpty(entry.DurationHint, UnknownDuration)
	}
	isShorts := strings.Contains(strings.ToLower(entry.Title), shortsTag) ||
		strings.Contains(strings.ToLower(entry.Description), shortsTag)
	if duration != UnknownDuration && isShortDuration(duration) {
		isShorts = true
	}
	return Video{
		ID:        id,
		Title:     entry.Title,
		Channel:   channel,
		URL:       entry.Link,
		Duration:  duration,
		IsShorts:  isShorts,
		Published: entry.Published,
		IsSeen:    seen[id],
	}, true
}

func sortNewestFirst(videos []Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].Published.After(videos[j].Published)
	})
}

func filterShorts(videos []Video, showShorts bool) []Video {
	if showShorts {
		return videos
	}
	kept := make([]Video, 0, len(videos))
	for _, video := range videos {
		if !video.IsShorts {
			kept = append(kept, video)
		}
	}
	return kept
}
