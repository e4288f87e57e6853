package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// userAgent is sent on every outbound request; video sites reject the
// default Go client string.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36"

var errNotAFeed = errors.New("not a valid RSS feed")

type FeedFetcher struct {
	client *http.Client
}

type ParsedFeed struct {
	Title   string
	URL     string
	Entries []FeedEntry
}

type FeedEntry struct {
	ID           string
	Title        string
	Link         string
	Description  string
	Published    time.Time
	DurationHint string
}

func NewFeedFetcher() *FeedFetcher {
	return &FeedFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *FeedFetcher) get(ctx context.Context, target string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp, nil, fmt.Errorf("fetch %s: http %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	return resp, body, nil
}

func (f *FeedFetcher) FetchFeed(ctx context.Context, feedURL string) (ParsedFeed, error) {
	_, body, err := f.get(ctx, feedURL)
	if err != nil {
		return ParsedFeed{}, err
	}
	return parseFeed(feedURL, body)
}

// DiscoverFeed accepts either a feed URL or an HTML page that advertises
// its feed through a <link rel="alternate"> tag.
func (f *FeedFetcher) DiscoverFeed(ctx context.Context, startURL string) (ParsedFeed, error) {
	resp, body, err := f.get(ctx, startURL)
	if err != nil {
		return ParsedFeed{}, err
	}
	finalURL := startURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	if isLikelyFeed(resp.Header.Get("content-type"), body) {
		return parseFeed(finalURL, body)
	}
	feedURL := findFeedLink(body)
	if feedURL == "" {
		return ParsedFeed{}, errors.New("no feed link found")
	}
	return f.FetchFeed(ctx, resolveURL(finalURL, feedURL))
}

func isLikelyFeed(contentType string, body []byte) bool {
	if strings.Contains(contentType, "xml") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<rss")) || bytes.HasPrefix(trimmed, []byte("<feed"))
}

func findFeedLink(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	href := ""
	doc.Find("link").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		linkType := strings.ToLower(sel.AttrOr("type", ""))
		if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
			return true
		}
		if value := strings.TrimSpace(sel.AttrOr("href", "")); value != "" {
			href = value
			return false
		}
		return true
	})
	return href
}

func resolveURL(baseURL string, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	resolved, err := parsed.Parse(href)
	if err != nil {
		return href
	}
	return resolved.String()
}

func parseFeed(feedURL string, body []byte) (ParsedFeed, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return ParsedFeed{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "rss", "RDF":
				return parseRSS(body, feedURL)
			case "feed":
				return parseAtom(body, feedURL)
			default:
				return ParsedFeed{}, errNotAFeed
			}
		}
	}
	return ParsedFeed{}, errNotAFeed
}

type rssDocument struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

// Namespaced siblings come first. encoding/xml assigns an element to the
// first matching field and a bare tag matches any namespace.
type rssItem struct {
	MediaTitle       string         `xml:"http://search.yahoo.com/mrss/ title"`
	MediaDescription string         `xml:"http://search.yahoo.com/mrss/ description"`
	AtomLinks        []atomLink     `xml:"http://www.w3.org/2005/Atom link"`
	GUID             string         `xml:"guid"`
	Title            string         `xml:"title"`
	Link             string         `xml:"link"`
	PubDate          string         `xml:"pubDate"`
	Description      string         `xml:"description"`
	Media            []mediaContent `xml:"content"`
	Group            mediaGroup     `xml:"group"`
}

type mediaGroup struct {
	Description string         `xml:"description"`
	Content     []mediaContent `xml:"content"`
	Duration    ytDuration     `xml:"duration"`
}

type mediaContent struct {
	Duration string `xml:"duration,attr"`
}

type ytDuration struct {
	Seconds string `xml:"seconds,attr"`
}

func parseRSS(body []byte, feedURL string) (ParsedFeed, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return ParsedFeed{}, err
	}
	feed := ParsedFeed{
		Title: strings.TrimSpace(doc.Channel.Title),
		URL:   feedURL,
	}
	for _, item := range doc.Channel.Items {
		hints := append([]mediaContent{}, item.Group.Content...)
		hints = append(hints, item.Media...)
		feed.Entries = append(feed.Entries, FeedEntry{
			ID:           strings.TrimSpace(item.GUID),
			Title:        strings.TrimSpace(firstNonEmpty(item.Title, item.MediaTitle)),
			Link:         strings.TrimSpace(firstNonEmpty(item.Link, findAtomLink(item.AtomLinks))),
			Description:  strings.TrimSpace(firstNonEmpty(item.Description, item.MediaDescription, item.Group.Description)),
			Published:    parseTime(item.PubDate),
			DurationHint: durationHint(item.Group, hints),
		})
	}
	return feed, nil
}

type atomFeed struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	VideoID   string     `xml:"videoId"`
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Summary   string     `xml:"summary"`
	Group     mediaGroup `xml:"group"`
}

func parseAtom(body []byte, feedURL string) (ParsedFeed, error) {
	var doc atomFeed
	if err := xml.Unmarshal(body, &doc); err != nil {
		return ParsedFeed{}, err
	}
	feed := ParsedFeed{
		Title: strings.TrimSpace(doc.Title),
		URL:   feedURL,
	}
	for _, entry := range doc.Entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" && entry.VideoID != "" {
			id = videoIDPrefix + strings.TrimSpace(entry.VideoID)
		}
		feed.Entries = append(feed.Entries, FeedEntry{
			ID:           id,
			Title:        strings.TrimSpace(entry.Title),
			Link:         strings.TrimSpace(findAtomLink(entry.Links)),
			Description:  strings.TrimSpace(firstNonEmpty(entry.Group.Description, entry.Summary)),
			Published:    parseTime(entry.Published),
			DurationHint: durationHint(entry.Group, entry.Group.Content),
		})
	}
	return feed, nil
}

// durationHint reads the optional duration some feeds embed in their
// media fields. Values are seconds or an already formatted clock string.
func durationHint(group mediaGroup, contents []mediaContent) string {
	candidates := []string{group.Duration.Seconds}
	for _, content := range contents {
		candidates = append(candidates, content.Duration)
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if seconds, err := strconv.Atoi(candidate); err == nil {
			if seconds > 0 {
				return formatClock(seconds)
			}
			continue
		}
		if _, ok := clockSeconds(candidate); ok {
			return candidate
		}
	}
	return ""
}

func findAtomLink(links []atomLink) string {
	for _, link := range links {
		if link.Rel == "alternate" || link.Rel == "" {
			return link.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339,
		time.RFC3339Nano,
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
