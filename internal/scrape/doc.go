// Package scrape implements the three extraction stages that turn
// catalog pages into downloadable audiobooks.
//
// # Stages
//
// The Discoverer walks a category page and emits catalog entries, one
// per audiobook. The Extractor visits each audiobook page and builds a
// full metadata record through cascading selectors and text patterns.
// The Resolver locates the page's media identifier and exchanges it
// for an m3u8 manifest URL via the media validation API.
//
// # Resilience
//
// The catalog's markup is not stable, so nothing in this package
// depends on a single selector. Discovery merges four independent
// strategies, every metadata field has a fallback chain, and media
// identifiers are hunted through three methods in priority order.
// Missing optional data degrades to empty fields; only a page with no
// title or author is rejected outright.
package scrape
