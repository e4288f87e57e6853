package main

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

var ErrFeedExists = errors.New("channel already exists")

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title string `xml:"title,omitempty"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr,omitempty"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Children []opmlOutline `xml:"outline"`
}

var (
	opmlMarshal   = func(v any) ([]byte, error) { return xml.MarshalIndent(v, "", "  ") }
	opmlWriteFile = renameio.WriteFile
)

// Subscriptions is the OPML file listing the subscribed channel feeds.
type Subscriptions struct {
	path string
}

func NewSubscriptions(path string) *Subscriptions {
	return &Subscriptions{path: path}
}

func (s *Subscriptions) load() (opmlDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return opmlDocument{Version: "1.0"}, nil
		}
		return opmlDocument{}, err
	}
	var doc opmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return opmlDocument{}, err
	}
	return doc, nil
}

func (s *Subscriptions) save(doc opmlDocument) error {
	if doc.Version == "" {
		doc.Version = "1.0"
	}
	data, err := opmlMarshal(doc)
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return opmlWriteFile(s.path, data, 0o644)
}

// Channels lists every outline carrying a feed URL, nested ones included,
// in document order.
func (s *Subscriptions) Channels() ([]Channel, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	channels := []Channel{}
	collectOpml(&channels, doc.Body.Outlines)
	return channels, nil
}

// LoadFeedURLs returns the subscribed feed URLs. An unreadable file yields
// an empty list.
func (s *Subscriptions) LoadFeedURLs() []string {
	channels, err := s.Channels()
	if err != nil {
		return nil
	}
	urls := make([]string, 0, len(channels))
	for _, channel := range channels {
		urls = append(urls, channel.URL)
	}
	return urls
}

func (s *Subscriptions) AddFeedURL(feedURL, title string) error {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return errors.New("empty feed url")
	}
	doc, err := s.load()
	if err != nil {
		return err
	}
	existing := []Channel{}
	collectOpml(&existing, doc.Body.Outlines)
	for _, channel := range existing {
		if channel.URL == feedURL {
			return fmt.Errorf("%w: %s", ErrFeedExists, channel.Title)
		}
	}
	title = firstNonEmpty(title, "Unknown Channel")
	doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
		Text:   title,
		Title:  title,
		Type:   "rss",
		XMLURL: feedURL,
	})
	return s.save(doc)
}

// RemoveFeedURL deletes the channel at index, counted the way Channels
// lists them.
func (s *Subscriptions) RemoveFeedURL(index int) (Channel, error) {
	doc, err := s.load()
	if err != nil {
		return Channel{}, err
	}
	counter := 0
	removed, ok := removeOutline(&doc.Body.Outlines, index, &counter)
	if !ok {
		return Channel{}, fmt.Errorf("no channel at index %d", index)
	}
	if err := s.save(doc); err != nil {
		return Channel{}, err
	}
	return removed, nil
}

// ImportOPML merges the feeds of another OPML file and reports how many
// were new.
func (s *Subscriptions) ImportOPML(path string) (int, error) {
	other := NewSubscriptions(path)
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	channels, err := other.Channels()
	if err != nil {
		return 0, err
	}
	if len(channels) == 0 {
		return 0, errors.New("no feeds found in OPML")
	}
	added := 0
	for _, channel := range channels {
		if err := s.AddFeedURL(channel.URL, channel.Title); err != nil {
			if errors.Is(err, ErrFeedExists) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

func collectOpml(channels *[]Channel, outlines []opmlOutline) {
	for _, outline := range outlines {
		if outline.XMLURL != "" {
			*channels = append(*channels, Channel{
				Title: firstNonEmpty(outline.Title, outline.Text, "Unknown"),
				URL:   outline.XMLURL,
			})
		}
		if len(outline.Children) > 0 {
			collectOpml(channels, outline.Children)
		}
	}
}

func removeOutline(outlines *[]opmlOutline, index int, counter *int) (Channel, bool) {
	for i := range *outlines {
		outline := &(*outlines)[i]
		if outline.XMLURL != "" {
			if *counter == index {
				removed := Channel{Title: firstNonEmpty(outline.Title, outline.Text, "Unknown"), URL: outline.XMLURL}
				*outlines = append((*outlines)[:i], (*outlines)[i+1:]...)
				return removed, true
			}
			*counter++
		}
		if removed, ok := removeOutline(&outline.Children, index, counter); ok {
			return removed, true
		}
	}
	return Channel{}, false
}
