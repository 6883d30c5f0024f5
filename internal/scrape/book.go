package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"ohdiodl/internal/fetch"
	"ohdiodl/internal/model"
)

// ErrMetadataIncomplete is returned when a page yields no title or no
// author. Both are required for a usable audiobook record.
var ErrMetadataIncomplete = errors.New("metadata incomplete")

// titleSuffixes are site decorations stripped from extracted titles.
var titleSuffixes = []string{
	" | ICI OHdio",
	" | Radio-Canada",
	" - OHdio",
	" - Radio-Canada",
	" - Livre audio",
}

var (
	htmlAuthorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)>Écrit\s+par\s+([A-Z][a-zA-ZÀ-ÿ\s\-']+?)<`),
		regexp.MustCompile(`(?i)class="[^"]*animator[^"]*">Écrit\s+par\s+([A-Z][a-zA-ZÀ-ÿ\s\-']+?)<`),
	}
	textAuthorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Écrit\s+par\s+([A-Z][a-zA-ZÀ-ÿ\s\-']+?)(?:\s|$)`),
		regexp.MustCompile(`(?i)auteur[:\s]+([A-Z][a-zA-ZÀ-ÿ\s\-']+?)(?:\s|$)`),
		regexp.MustCompile(`(?i)by\s+([A-Z][a-zA-ZÀ-ÿ\s\-']+?)(?:\s|$)`),
		regexp.MustCompile(`(?i)de\s+([A-Z][a-zA-ZÀ-ÿ\s\-']+?)(?:\s|$)`),
	}
	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+h\s*\d+min?)`),
		regexp.MustCompile(`(\d+:\d+:\d+)`),
		regexp.MustCompile(`(?i)(\d+\s*heures?\s*\d+\s*minutes?)`),
		regexp.MustCompile(`(?i)Durée[:\s]*([^.]+)`),
	}
	seriesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.+?)\s*#(\d+)`),
		regexp.MustCompile(`(?i)^(.+?),?\s*tome\s*(\d+)`),
		regexp.MustCompile(`(?i)^(.+?),?\s*volume\s*(\d+)`),
	}
)

// Extractor scrapes an audiobook page into a complete metadata record.
//
// Every field is extracted through a cascade of selectors and text
// patterns so that layout changes degrade gracefully: one broken
// selector falls through to the next. Only title and author are hard
// requirements; all other fields are best-effort.
type Extractor struct {
	client   *fetch.Client
	resolver *Resolver
	logger   *zap.Logger
}

// NewExtractor creates an Extractor sharing the resolver's client.
func NewExtractor(client *fetch.Client, resolver *Resolver, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{client: client, resolver: resolver, logger: logger}
}

// Extract fetches an audiobook page and builds its metadata record.
//
// Returns ErrMetadataIncomplete when title or author cannot be found.
// Playlist resolution and thumbnail download failures are logged but
// non-fatal; the corresponding fields stay empty.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*model.AudiobookMetadata, error) {
	e.logger.Info("extracting metadata", zap.String("url", pageURL))

	res, err := e.client.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("fetch %s: %s", pageURL, res.Kind)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse audiobook page: %w", err)
	}

	title := e.extractTitle(doc)
	author := e.extractAuthor(doc, res.Body)
	if title == "" || author == "" {
		e.logger.Warn("missing basic info",
			zap.String("url", pageURL),
			zap.String("title", title),
			zap.String("author", author))
		return nil, fmt.Errorf("%w: title=%q author=%q", ErrMetadataIncomplete, title, author)
	}

	md := &model.AudiobookMetadata{
		Title:    title,
		Author:   author,
		URL:      pageURL,
		Language: "fr",
	}

	if playlistURL, err := e.resolver.Resolve(ctx, res.Body, pageURL); err != nil {
		e.logger.Warn("playlist resolution failed",
			zap.String("url", pageURL),
			zap.Error(err))
	} else {
		md.PlaylistURL = playlistURL
	}

	text := doc.Text()
	md.Description = e.extractDescription(doc)
	md.Duration = e.extractDuration(doc, text)
	md.PublicationDate = e.extractPublicationDate(doc)
	md.Genre = e.extractGenre(doc)
	md.ThumbnailURL = e.extractThumbnailURL(doc, pageURL)
	md.ISBN = selectorText(doc, 2, `meta[property="book:isbn"]`, `meta[name="isbn"]`, ".isbn")
	md.Publisher = selectorText(doc, 2, ".publisher", ".book-publisher", `meta[property="book:publisher"]`, `meta[name="publisher"]`)
	md.Narrator = e.extractNarrator(doc, text)
	md.Series, md.SeriesNumber = e.extractSeries(doc)

	if md.ThumbnailURL != "" {
		if data, err := e.client.FetchBytes(ctx, md.ThumbnailURL); err != nil {
			e.logger.Warn("thumbnail download failed",
				zap.String("url", md.ThumbnailURL),
				zap.Error(err))
		} else {
			md.ThumbnailData = data
		}
	}

	e.logger.Info("metadata extracted",
		zap.String("title", md.Title),
		zap.String("author", md.Author),
		zap.Bool("playlist", md.PlaylistURL != ""))
	return md, nil
}

func (e *Extractor) extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"h1",
		".title",
		".book-title",
		".audiobook-title",
		"[data-title]",
		`meta[property="og:title"]`,
		"title",
	}
	for _, sel := range selectors {
		if t := elementText(doc.Find(sel).First()); len(t) > 2 {
			if cleaned := cleanTitle(t); cleaned != "" {
				return cleaned
			}
		}
	}
	return ""
}

// extractAuthor runs the full author cascade: selectors, then raw-HTML
// "Écrit par" patterns, then plain-text patterns with name validation,
// then a line scan for author keywords.
func (e *Extractor) extractAuthor(doc *goquery.Document, rawHTML string) string {
	selectors := []string{
		".author",
		".book-author",
		".by-author",
		"[data-author]",
		`meta[name="author"]`,
		`meta[property="book:author"]`,
	}
	for _, sel := range selectors {
		if a := elementText(doc.Find(sel).First()); len(a) > 1 {
			if cleaned := cleanAuthorPrefix(a); cleaned != "" {
				return cleaned
			}
		}
	}

	// The raw HTML preserves structure the text dump loses; "Écrit
	// par" right before a closing tag is the author byline.
	for _, pattern := range htmlAuthorPatterns {
		if m := pattern.FindStringSubmatch(rawHTML); m != nil {
			author := cleanAuthorName(m[1])
			if plausibleName(author) {
				return author
			}
		}
	}

	text := doc.Text()
	for _, pattern := range textAuthorPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			author := cleanAuthorName(m[1])
			if plausibleName(author) && capitalizedWords(author) {
				return author
			}
		}
	}

	// Last resort: scan lines for author keywords.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 5 || len(line) >= 50 {
			continue
		}
		lower := strings.ToLower(line)
		for _, keyword := range []string{"par ", "by ", "auteur: ", "de "} {
			idx := strings.Index(lower, keyword)
			if idx < 0 {
				continue
			}
			words := strings.Fields(lower[idx+len(keyword):])
			if len(words) >= 1 {
				if len(words) > 3 {
					words = words[:3]
				}
				return titleCase(strings.Join(words, " "))
			}
		}
	}

	return ""
}

func (e *Extractor) extractDescription(doc *goquery.Document) string {
	return selectorText(doc, 20,
		".description",
		".summary",
		".synopsis",
		".excerpt",
		`meta[name="description"]`,
		`meta[property="og:description"]`,
		".book-description",
		".content-description")
}

func (e *Extractor) extractDuration(doc *goquery.Document, text string) string {
	if d := selectorText(doc, 0,
		".duration", ".length", ".runtime", "[data-duration]",
		`meta[property="video:duration"]`); d != "" {
		return d
	}
	for _, pattern := range durationPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func (e *Extractor) extractPublicationDate(doc *goquery.Document) string {
	selectors := []string{
		".publication-date",
		".publish-date",
		".date",
		`meta[property="book:release_date"]`,
		`meta[name="publication_date"]`,
		"time[datetime]",
	}
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if el.Is("time") {
			if dt, ok := el.Attr("datetime"); ok && dt != "" {
				return dt
			}
		}
		if t := elementText(el); t != "" {
			return t
		}
	}
	return ""
}

func (e *Extractor) extractGenre(doc *goquery.Document) string {
	if g := selectorText(doc, 0,
		".genre", ".category", ".book-genre",
		`meta[property="book:genre"]`, `meta[name="genre"]`); g != "" {
		return g
	}
	// Default for the children's catalog.
	return "Jeunesse"
}

func (e *Extractor) extractThumbnailURL(doc *goquery.Document, pageURL string) string {
	base, _ := url.Parse(pageURL)
	selectors := []string{
		".book-cover img",
		".cover img",
		".thumbnail img",
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
		".audiobook-cover img",
	}
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		var raw string
		if el.Is("meta") {
			raw, _ = el.Attr("content")
		} else {
			raw, _ = el.Attr("src")
			if raw == "" {
				raw, _ = el.Attr("data-src")
			}
		}
		if raw != "" {
			return resolveURL(base, raw)
		}
	}
	return ""
}

func (e *Extractor) extractNarrator(doc *goquery.Document, text string) string {
	if n := selectorText(doc, 0, ".narrator", ".reader", ".voice-actor", ".read-by"); n != "" {
		return n
	}
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, keyword := range []string{"lu par ", "narré par ", "read by "} {
			if idx := strings.Index(lower, keyword); idx >= 0 {
				narrator := strings.TrimSpace(lower[idx+len(keyword):])
				if narrator != "" {
					return titleCase(narrator)
				}
			}
		}
	}
	return ""
}

func (e *Extractor) extractSeries(doc *goquery.Document) (string, int) {
	for _, sel := range []string{".series", ".book-series", ".series-info"} {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		for _, pattern := range seriesPatterns {
			if m := pattern.FindStringSubmatch(text); m != nil {
				n, err := strconv.Atoi(m[2])
				if err != nil {
					continue
				}
				return strings.TrimSpace(m[1]), n
			}
		}
		// Series name without a number still counts.
		return text, 0
	}
	return "", 0
}

// selectorText returns the first selector whose element text exceeds
// minLen characters. Meta elements contribute their content attribute.
func selectorText(doc *goquery.Document, minLen int, selectors ...string) string {
	for _, sel := range selectors {
		if t := elementText(doc.Find(sel).First()); len(t) > minLen {
			return t
		}
	}
	return ""
}

// elementText extracts readable text from an element, using the
// content attribute for meta tags.
func elementText(el *goquery.Selection) string {
	if el.Length() == 0 {
		return ""
	}
	if el.Is("meta") {
		content, _ := el.Attr("content")
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(el.Text())
}

// cleanTitle strips known site suffixes from an extracted title.
func cleanTitle(title string) string {
	for _, suffix := range titleSuffixes {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}

// cleanAuthorPrefix strips leading "par", "by", "de" and "auteur:"
// markers from an author string.
func cleanAuthorPrefix(author string) string {
	lower := strings.ToLower(author)
	for _, prefix := range []string{"par ", "by ", "de ", "auteur: "} {
		if strings.HasPrefix(lower, prefix) {
			author = author[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(author)
}
