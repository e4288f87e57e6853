package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	enrichBatchSize   = 40
	maxInflightLookup = 5
	pageScrapeTimeout = 5 * time.Second
	toolTimeout       = 30 * time.Second
)

var ErrDurationNotFound = errors.New("duration not found")

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// durationStrategy is one way of finding a video's duration. Strategies
// are tried in order until one succeeds.
type durationStrategy interface {
	Name() string
	Lookup(ctx context.Context, videoURL string) (string, error)
}

type durationSink interface {
	SaveDuration(videoID, duration string) error
}

// DurationResolver owns the in-memory duration cache for a session. It is
// seeded from the store and writes every success back through the sink.
type DurationResolver struct {
	mu         sync.Mutex
	cache      map[string]string
	strategies []durationStrategy
	sink       durationSink
	log        zerolog.Logger
	limit      int64
}

func NewDurationResolver(cache map[string]string, sink durationSink, logger zerolog.Logger, strategies ...durationStrategy) *DurationResolver {
	seeded := make(map[string]string, len(cache))
	for id, duration := range cache {
		seeded[id] = duration
	}
	return &DurationResolver{
		cache:      seeded,
		strategies: strategies,
		sink:       sink,
		log:        logger,
		limit:      maxInflightLookup,
	}
}

func defaultDurationStrategies(ytdlpPath string) []durationStrategy {
	return []durationStrategy{
		&pageScrapeStrategy{client: &http.Client{}, timeout: pageScrapeTimeout},
		&toolStrategy{path: ytdlpPath, timeout: toolTimeout},
	}
}

// Snapshot copies the cache so an aggregation cycle can read it without
// holding the lock.
func (r *DurationResolver) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.cache))
	for id, duration := range r.cache {
		out[id] = duration
	}
	return out
}

func (r *DurationResolver) cached(videoID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	duration, ok := r.cache[videoID]
	if !ok || duration == UnknownDuration {
		return "", false
	}
	return duration, true
}

func (r *DurationResolver) remember(videoID, duration string) {
	r.mu.Lock()
	r.cache[videoID] = duration
	r.mu.Unlock()
	if r.sink != nil {
		if err := r.sink.SaveDuration(videoID, duration); err != nil {
			r.log.Warn().Err(err).Str("video_id", videoID).Msg("persist duration")
		}
	}
}

// Resolve returns the duration of a video or UnknownDuration when every
// strategy fails. Failures are not cached so later cycles retry.
func (r *DurationResolver) Resolve(ctx context.Context, videoURL, videoID string) string {
	if duration, ok := r.cached(videoID); ok {
		return duration
	}
	for _, strategy := range r.strategies {
		duration, err := strategy.Lookup(ctx, videoURL)
		if err != nil {
			r.log.Debug().Err(err).Str("strategy", strategy.Name()).Str("video_id", videoID).Msg("duration lookup failed")
			continue
		}
		r.remember(videoID, duration)
		return duration
	}
	return UnknownDuration
}

// ResolveBatch fills unknown durations among the first enrichBatchSize
// videos, with at most r.limit lookups in flight. The slice is updated
// only after the whole batch finished. It returns the number resolved.
func (r *DurationResolver) ResolveBatch(ctx context.Context, videos []Video) int {
	window := videos
	if len(window) > enrichBatchSize {
		window = window[:enrichBatchSize]
	}
	pending := []int{}
	for i, video := range window {
		if video.Duration == UnknownDuration || video.Duration == "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	results := make([]string, len(pending))
	gate := semaphore.NewWeighted(r.limit)
	var g errgroup.Group
	for slot, idx := range pending {
		video := window[idx]
		g.Go(func() error {
			if err := gate.Acquire(ctx, 1); err != nil {
				results[slot] = UnknownDuration
				return nil
			}
			defer gate.Release(1)
			results[slot] = r.Resolve(ctx, video.URL, video.ID)
			return nil
		})
	}
	_ = g.Wait()

	resolved := 0
	for slot, idx := range pending {
		duration := results[slot]
		videos[idx].Duration = duration
		if duration == UnknownDuration {
			continue
		}
		resolved++
		if isShortDuration(duration) {
			videos[idx].IsShorts = true
		}
	}
	r.log.Debug().Int("requested", len(pending)).Int("resolved", resolved).Msg("duration batch")
	return resolved
}

type pageScrapeStrategy struct {
	client  *http.Client
	timeout time.Duration
}

func (p *pageScrapeStrategy) Name() string { return "page" }

func (p *pageScrapeStrategy) Lookup(ctx context.Context, videoURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video page: http %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	token, ok := doc.Find(`meta[itemprop="duration"]`).First().Attr("content")
	if !ok {
		return "", ErrDurationNotFound
	}
	return parseISODuration(token)
}

type toolStrategy struct {
	path    string
	timeout time.Duration
}

var toolOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}

func (t *toolStrategy) Name() string { return "yt-dlp" }

func (t *toolStrategy) Lookup(ctx context.Context, videoURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := toolOutput(ctx, t.path, "--get-duration", videoURL)
	if err != nil {
		return "", err
	}
	return normalizeToolDuration(string(out))
}

// parseISODuration turns a PT#H#M#S token into a clock string.
func parseISODuration(token string) (string, error) {
	token = strings.TrimSpace(token)
	match := isoDurationRe.FindStringSubmatch(token)
	if match == nil || token == "PT" {
		return "", fmt.Errorf("bad duration token %q", token)
	}
	parts := [3]int{}
	for i := range parts {
		if match[i+1] == "" {
			continue
		}
		value, err := strconv.Atoi(match[i+1])
		if err != nil {
			return "", err
		}
		parts[i] = value
	}
	return formatHMS(parts[0], parts[1], parts[2]), nil
}

func formatHMS(h, m, s int) string {
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return formatHMS(seconds/3600, (seconds%3600)/60, seconds%60)
}

// normalizeToolDuration accepts the output of yt-dlp --get-duration.
// A bare number is a count of seconds.
func normalizeToolDuration(out string) (string, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", ErrDurationNotFound
	}
	out = fields[0]
	if isDigits(out) {
		seconds, err := strconv.Atoi(out)
		if err != nil {
			return "", err
		}
		return formatClock(seconds), nil
	}
	if !strings.Contains(out, ":") {
		return "", fmt.Errorf("unexpected duration %q", out)
	}
	if _, ok := clockSeconds(out); !ok {
		return "", fmt.Errorf("unexpected duration %q", out)
	}
	return out, nil
}

func clockSeconds(value string) (int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		if !isDigits(part) {
			return 0, false
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// isShortDuration reports durations of one minute or less in M:SS form.
func isShortDuration(duration string) bool {
	parts := strings.Split(duration, ":")
	if len(parts) != 2 {
		return false
	}
	m, errM := strconv.Atoi(parts[0])
	s, errS := strconv.Atoi(parts[1])
	if errM != nil || errS != nil {
		return false
	}
	return m == 0 || (m == 1 && s == 0)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
