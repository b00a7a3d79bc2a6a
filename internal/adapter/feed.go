package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/amishk599/statejobs/internal/fingerprint"
	"github.com/amishk599/statejobs/internal/model"
)

// DefaultFeedURL is the New York State jobs RSS feed.
const DefaultFeedURL = "https://statejobs.ny.gov/rss/employeerss.cfm"

// rssDocument mirrors the parts of an RSS 2.0 document the feed uses.
type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

var (
	idPattern       = regexp.MustCompile(`ID:\s*(\d+)`)
	deadlinePattern = regexp.MustCompile(`Deadline:\s*([\d/]+)`)
	gradePattern    = regexp.MustCompile(`Grade:\s*(\w+)`)
	countyPattern   = regexp.MustCompile(`County:[ \t]*([^\n]*)`)
	nextLabel       = regexp.MustCompile(`\b(?:ID|Deadline|Grade|County)\s*:`)
	lineBreakTag    = regexp.MustCompile(`(?i)<\s*/?\s*(?:br|p|div|li|tr|h[1-6])\b[^>]*>`)
)

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

var deadlineLayouts = []string{"1/2/2006", "1/2/06"}

// FeedAdapter reads job summaries from the state jobs RSS feed.
type FeedAdapter struct {
	url      string
	location *time.Location
	client   *http.Client
	logger   *slog.Logger
}

// NewFeedAdapter creates a feed adapter. Deadlines in the feed are calendar
// dates and are read as midnight in loc.
func NewFeedAdapter(url string, loc *time.Location, client *http.Client, logger *slog.Logger) *FeedAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &FeedAdapter{url: url, location: loc, client: client, logger: logger}
}

// FetchSummaries makes one request to the feed and returns every entry whose
// publish date parsed, with its summary hash computed. Entries without an ID
// are returned with model.NoID; callers decide what to do with them.
func (a *FeedAdapter) FetchSummaries(ctx context.Context) ([]model.Summary, error) {
	resp, err := get(ctx, a.client, a.url, "rss fetch", "application/rss+xml", "application/xml", "text/xml", "application/atom+xml")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc rssDocument
	dec := xml.NewDecoder(resp.Body)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("rss decode %s: %w", a.url, err)
	}

	summaries := make([]model.Summary, 0, len(doc.Channel.Items))
	skipped := 0
	for _, item := range doc.Channel.Items {
		s, err := a.parseItem(item)
		if err != nil {
			skipped++
			a.logger.Warn("skipping feed entry", "title", strings.TrimSpace(item.Title), "error", err)
			continue
		}
		summaries = append(summaries, s)
	}

	a.logger.Debug("feed parsed", "entries", len(doc.Channel.Items), "kept", len(summaries), "skipped", skipped)
	return summaries, nil
}

func (a *FeedAdapter) parseItem(item rssItem) (model.Summary, error) {
	published, err := parsePubDate(item.PubDate)
	if err != nil {
		return model.Summary{}, err
	}

	desc := descriptionText(item.Description)
	s := model.Summary{
		ID:          parseID(desc),
		Link:        strings.TrimSpace(item.Link),
		Title:       strings.TrimSpace(item.Title),
		PublishDate: published,
		Deadline:    parseDeadline(desc, a.location),
		Grade:       parseGrade(desc),
		County:      parseCounty(desc),
	}
	s.SummaryHash = fingerprint.Summary(s)
	return s, nil
}

func parsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable pubDate %q", value)
}

func parseID(desc string) int64 {
	m := idPattern.FindStringSubmatch(desc)
	if m == nil {
		return model.NoID
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return model.NoID
	}
	return id
}

// parseDeadline returns the Unix epoch when the deadline is missing or
// malformed, which makes the entry expired.
func parseDeadline(desc string, loc *time.Location) time.Time {
	m := deadlinePattern.FindStringSubmatch(desc)
	if m == nil {
		return time.Unix(0, 0).UTC()
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, m[1], loc); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

func parseGrade(desc string) string {
	if m := gradePattern.FindStringSubmatch(desc); m != nil {
		return m[1]
	}
	return "Unknown"
}

func parseCounty(desc string) string {
	m := countyPattern.FindStringSubmatch(desc)
	if m == nil {
		return ""
	}
	county := m[1]
	if loc := nextLabel.FindStringIndex(county); loc != nil {
		county = county[:loc[0]]
	}
	return strings.Join(strings.Fields(county), " ")
}

// descriptionText unescapes the description and puts each block-separated
// fragment on its own line so label values end at line breaks.
func descriptionText(content string) string {
	lines := strings.Split(lineBreakTag.ReplaceAllString(html.UnescapeString(content), "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = extractText(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
