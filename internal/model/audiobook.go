package model

import (
	"fmt"
	"regexp"
)

// UnknownAuthor is the sentinel used when no author can be resolved at
// discovery time. Discovery never drops an entry for a missing author;
// only full metadata extraction treats it as mandatory.
const UnknownAuthor = "Unknown Author"

// CatalogEntry is the minimal record produced by category discovery.
//
// Entries are identified by URL: the discoverer de-duplicates on the
// canonical absolute URL and keeps whichever strategy found it first.
// Title is the only mandatory field; everything else is best effort.
type CatalogEntry struct {
	// Title is the audiobook title as shown on the category page.
	Title string

	// Author is the audiobook author, or UnknownAuthor when the
	// category page does not expose one.
	Author string

	// URL is the canonical absolute URL of the title page. It is the
	// identity key for de-duplication.
	URL string

	// ThumbnailURL is the cover image URL, if one was found.
	ThumbnailURL string

	// Description is a short blurb from the category page, if any.
	Description string
}

// AudiobookMetadata is the complete record extracted from a title page.
//
// Title and Author are mandatory: extraction fails rather than return a
// record missing either. All other fields are optional and stay zero
// when no extraction heuristic matched. The record is immutable once
// built.
type AudiobookMetadata struct {
	Title  string
	Author string

	// URL is the title page this record was extracted from.
	URL string

	// PlaylistURL is the resolved HLS manifest URL, empty when the
	// media identifier could not be found or the validation API did
	// not yield a manifest.
	PlaylistURL string

	Description     string
	Duration        string
	PublicationDate string

	// Genre defaults to the category label when the page does not
	// carry one.
	Genre string

	// Language is the catalog's fixed locale code.
	Language string

	ThumbnailURL string

	// ThumbnailData holds the raw cover image bytes, fetched
	// separately from the page. Nil when the fetch failed or no
	// thumbnail URL was found.
	ThumbnailData []byte

	ISBN      string
	Publisher string
	Narrator  string

	Series string

	// SeriesNumber is the position within Series, 0 when the series
	// text carried no numeric suffix.
	SeriesNumber int
}

// Complete reports whether the record satisfies the title+author gate.
func (m *AudiobookMetadata) Complete() bool {
	return m.Title != "" && m.Author != ""
}

// SeriesLabel returns the series formatted for display and tagging,
// e.g. "Les Héros #3", or just the series name when no number is known.
func (m *AudiobookMetadata) SeriesLabel() string {
	if m.Series == "" {
		return ""
	}
	if m.SeriesNumber > 0 {
		return fmt.Sprintf("%s #%d", m.Series, m.SeriesNumber)
	}
	return m.Series
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// PublicationYear extracts a four-digit year from the publication date,
// which the catalog serves in several inconsistent formats. Returns ""
// when no year is present.
func (m *AudiobookMetadata) PublicationYear() string {
	return yearPattern.FindString(m.PublicationDate)
}
