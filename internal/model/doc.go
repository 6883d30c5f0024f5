// Package model defines the core data structures shared across the
// ohdiodl pipeline.
//
// # CatalogEntry
//
// CatalogEntry is what category discovery produces: a title, a page
// URL and whatever else the listing happened to expose. Entries are
// de-duplicated by URL.
//
// # AudiobookMetadata
//
// AudiobookMetadata is the full record extracted from a title page,
// including the resolved playlist URL and the downloaded cover bytes:
//
//	meta, err := extractor.Extract(ctx, entry.URL)
//	if err != nil {
//	    // title or author missing, or the page could not be fetched
//	}
//	fmt.Printf("%s by %s (%s)\n", meta.Title, meta.Author, meta.PlaylistURL)
package model
