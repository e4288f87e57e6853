package main

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newResponse(status int, body string, headers map[string]string, req *http.Request) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
		Request:    req,
	}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return resp
}

func clientForResponse(status int, body string, headers map[string]string) *http.Client {
	return &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return newResponse(status, body, headers, r), nil
	})}
}

// clientForFeeds serves each URL from the map and 404s everything else.
func clientForFeeds(feeds map[string]string) *http.Client {
	return &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		body, ok := feeds[r.URL.String()]
		if !ok {
			return newResponse(http.StatusNotFound, "", nil, r), nil
		}
		return newResponse(http.StatusOK, body, map[string]string{"content-type": "application/atom+xml"}, r), nil
	})}
}

type fixtureEntry struct {
	id          string
	title       string
	description string
	published   time.Time
}

func atomFixture(channel string, entries ...fixtureEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
`)
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(channel))
	for _, entry := range entries {
		published := ""
		if !entry.published.IsZero() {
			published = entry.published.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, `<entry>
 <id>yt:video:%[1]s</id>
 <yt:videoId>%[1]s</yt:videoId>
 <title>%[2]s</title>
 <link rel="alternate" href="https://www.youtube.com/watch?v=%[1]s"/>
 <published>%[3]s</published>
 <media:group><media:description>%[4]s</media:description></media:group>
</entry>
`, entry.id, html.EscapeString(entry.title), published, html.EscapeString(entry.description))
	}
	b.WriteString("</feed>\n")
	return b.String()
}

func videoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ytrss.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeStrategy answers from a URL map and records call counts and the
// highest number of concurrent lookups it saw.
type fakeStrategy struct {
	name      string
	durations map[string]string
	delay     time.Duration
	calls     atomic.Int32
	inflight  atomic.Int32
	mu        sync.Mutex
	peak      int32
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Lookup(ctx context.Context, videoURL string) (string, error) {
	f.calls.Add(1)
	current := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	f.mu.Lock()
	if current > f.peak {
		f.peak = current
	}
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	duration, ok := f.durations[videoURL]
	if !ok {
		return "", ErrDurationNotFound
	}
	return duration, nil
}

func (f *fakeStrategy) maxInflight() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// newTestApp builds an App against temp paths with the network, clipboard,
// browser and config writer replaced.
func newTestApp(t *testing.T, feeds map[string]string, strategies ...durationStrategy) *App {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	cfg := DefaultConfig()
	app, err := NewApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	app.fetcher.client = clientForFeeds(feeds)
	app.resolver = NewDurationResolver(nil, app.store, zerolog.Nop(), strategies...)
	app.openURL = func(string) error { return nil }
	app.copyText = func(string) error { return nil }
	app.saveConfig = func(Config) error { return nil }
	return app
}

func subscribeAll(t *testing.T, app *App, urls ...string) {
	t.Helper()
	for i, url := range urls {
		if err := app.subs.AddFeedURL(url, fmt.Sprintf("Channel %d", i)); err != nil {
			t.Fatalf("AddFeedURL error: %v", err)
		}
	}
}
