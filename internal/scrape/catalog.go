package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"ohdiodl/internal/fetch"
	"ohdiodl/internal/model"
)

// JeunesseCategoryURL is the default catalog page when no category is
// given.
const JeunesseCategoryURL = "https://ici.radio-canada.ca/ohdio/categories/1003592/jeunesse"

// audiobookPathMarker identifies links that lead to audiobook pages.
const audiobookPathMarker = "livres-audio"

// Discoverer finds audiobook entries on a category page.
//
// The catalog's markup has changed several times, so discovery runs
// four independent strategies over the same document and merges their
// results:
//
//  1. Grid items: anchors inside .index-grid-item containers
//  2. Structured selectors: known item classes, first matching
//     selector wins
//  3. "Livre audio" labels: text markers walked up to their linked
//     container
//  4. Generic links: any anchor whose href contains "livres-audio"
//
// A strategy that panics or finds nothing is logged and skipped; the
// merged list is de-duplicated by absolute URL with the first
// occurrence winning, so earlier (more precise) strategies take
// priority.
type Discoverer struct {
	client *fetch.Client
	logger *zap.Logger
}

// NewDiscoverer creates a Discoverer. A nil logger disables logging.
func NewDiscoverer(client *fetch.Client, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{client: client, logger: logger}
}

// Discover fetches the category page and returns every audiobook entry
// found on it. An empty categoryURL defaults to JeunesseCategoryURL.
//
// A failed fetch returns an empty list and a nil error; the condition
// is logged, and callers treat an empty catalog as "nothing to do".
func (d *Discoverer) Discover(ctx context.Context, categoryURL string) ([]model.CatalogEntry, error) {
	if categoryURL == "" {
		categoryURL = JeunesseCategoryURL
	}
	d.logger.Info("discovering catalog", zap.String("url", categoryURL))

	res, err := d.client.FetchPage(ctx, categoryURL)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		d.logger.Error("category page unavailable",
			zap.String("url", categoryURL),
			zap.String("result", res.Kind.String()))
		return []model.CatalogEntry{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse category page: %w", err)
	}

	base, _ := url.Parse(categoryURL)

	strategies := []struct {
		name string
		run  func(*goquery.Document, *url.URL) []model.CatalogEntry
	}{
		{"grid items", d.parseGridItems},
		{"structured selectors", d.parseStructuredItems},
		{"livre audio labels", d.parseLivreAudioSections},
		{"generic links", d.parseGenericLinks},
	}

	var all []model.CatalogEntry
	for _, s := range strategies {
		entries := d.runStrategy(s.name, s.run, doc, base)
		if len(entries) > 0 {
			d.logger.Debug("strategy matched",
				zap.String("strategy", s.name),
				zap.Int("entries", len(entries)))
		}
		all = append(all, entries...)
	}

	unique := dedupeByURL(all)
	d.logger.Info("catalog discovered", zap.Int("audiobooks", len(unique)))
	return unique, nil
}

// runStrategy contains a single strategy's panics so one broken parser
// cannot take down discovery.
func (d *Discoverer) runStrategy(name string, run func(*goquery.Document, *url.URL) []model.CatalogEntry, doc *goquery.Document, base *url.URL) (entries []model.CatalogEntry) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("discovery strategy panicked",
				zap.String("strategy", name),
				zap.Any("panic", r))
			entries = nil
		}
	}()
	return run(doc, base)
}

// parseGridItems handles the current catalog layout: .index-grid-item
// cells wrapping audiobook anchors.
func (d *Discoverer) parseGridItems(doc *goquery.Document, base *url.URL) []model.CatalogEntry {
	var entries []model.CatalogEntry
	doc.Find(".index-grid-item").Each(func(_ int, item *goquery.Selection) {
		item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if !strings.Contains(href, audiobookPathMarker) {
				return
			}
			if entry, ok := entryFromAnchor(a, base); ok {
				entries = append(entries, entry)
			}
		})
	})
	return entries
}

// structuredItemSelectors are known wrappers from older catalog
// layouts, most specific first.
var structuredItemSelectors = []string{
	`article[data-type="livres-audio"]`,
	".livre-audio",
	".audiobook-item",
	"article",
	"div",
}

// parseStructuredItems tries each known item selector and uses the
// first one that yields entries. The trailing article/div selectors
// only count elements that actually contain an audiobook link.
func (d *Discoverer) parseStructuredItems(doc *goquery.Document, base *url.URL) []model.CatalogEntry {
	for _, sel := range structuredItemSelectors {
		items := doc.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return containedAudiobookLink(s).Length() > 0
		})
		if items.Length() == 0 {
			continue
		}
		var entries []model.CatalogEntry
		items.Each(func(_ int, item *goquery.Selection) {
			if entry, ok := entryFromContainer(item, base); ok {
				entries = append(entries, entry)
			}
		})
		if len(entries) > 0 {
			return entries
		}
	}
	return nil
}

// parseLivreAudioSections finds "Livre audio" text labels and walks up
// to the container that carries the actual link.
func (d *Discoverer) parseLivreAudioSections(doc *goquery.Document, base *url.URL) []model.CatalogEntry {
	var entries []model.CatalogEntry
	doc.Find("article, div, section").Each(func(_ int, s *goquery.Selection) {
		// Only the innermost element holding the label, not every
		// ancestor that transitively contains it.
		if !strings.Contains(ownOrChildText(s), "Livre audio") {
			return
		}
		container := s
		for container.Parent().Length() > 0 && container.Parent().Is("article, div, section") {
			if container.Parent().Find("a[href]").Length() > 0 {
				container = container.Parent()
			} else {
				break
			}
		}
		if entry, ok := entryFromContainer(container, base); ok {
			entries = append(entries, entry)
		}
	})
	return entries
}

// parseGenericLinks is the last-resort sweep: every anchor pointing at
// an audiobook page, regardless of surrounding structure.
func (d *Discoverer) parseGenericLinks(doc *goquery.Document, base *url.URL) []model.CatalogEntry {
	var entries []model.CatalogEntry
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, audiobookPathMarker) {
			return
		}
		if entry, ok := entryFromAnchor(a, base); ok {
			entries = append(entries, entry)
		}
	})
	return entries
}

// containedAudiobookLink returns the first audiobook anchor inside s.
func containedAudiobookLink(s *goquery.Selection) *goquery.Selection {
	return s.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return strings.Contains(href, audiobookPathMarker)
	}).First()
}

// entryFromAnchor builds a catalog entry from an audiobook anchor.
// Title is required; a missing author becomes model.UnknownAuthor.
func entryFromAnchor(a *goquery.Selection, base *url.URL) (model.CatalogEntry, bool) {
	href, ok := a.Attr("href")
	if !ok || href == "" {
		return model.CatalogEntry{}, false
	}
	title := titleFromAnchor(a)
	if title == "" {
		return model.CatalogEntry{}, false
	}
	author := authorFromAnchor(a)
	if author == "" {
		author = model.UnknownAuthor
	}
	return model.CatalogEntry{
		Title:        title,
		Author:       author,
		URL:          resolveURL(base, href),
		ThumbnailURL: thumbnailFromAnchor(a, base),
	}, true
}

// entryFromContainer builds a catalog entry from a wrapper element,
// locating the audiobook anchor inside it first.
func entryFromContainer(container *goquery.Selection, base *url.URL) (model.CatalogEntry, bool) {
	link := containedAudiobookLink(container)
	if link.Length() == 0 {
		return model.CatalogEntry{}, false
	}
	entry, ok := entryFromAnchor(link, base)
	if !ok {
		return model.CatalogEntry{}, false
	}
	entry.Description = descriptionFromContainer(container)
	return entry, true
}

func descriptionFromContainer(container *goquery.Selection) string {
	for _, sel := range []string{".description", ".summary", ".excerpt", "p.description", "[data-description]"} {
		if text := strings.TrimSpace(container.Find(sel).First().Text()); len(text) > 10 {
			return text
		}
	}
	return ""
}

// ownOrChildText returns the text of s excluding nested article, div
// and section elements, so container walking starts at the innermost
// match.
func ownOrChildText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("article, div, section").Remove()
	return clone.Text()
}

// dedupeByURL removes duplicate entries, keeping the first occurrence
// of each URL so higher-priority strategies win.
func dedupeByURL(entries []model.CatalogEntry) []model.CatalogEntry {
	seen := make(map[string]struct{}, len(entries))
	unique := make([]model.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}
		unique = append(unique, e)
	}
	return unique
}
