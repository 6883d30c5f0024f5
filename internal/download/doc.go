// Package download orchestrates the audiobook pipeline and performs
// the actual stream retrieval.
//
// # Manager
//
// The Manager drives the full flow: discover a category, then for
// each audiobook extract metadata, resolve the playlist, download the
// stream and embed tags. Items run concurrently under a configurable
// limit, failures are isolated per item, and atomic Stats counters
// track outcomes for the end-of-run summary.
//
// # Downloader
//
// The Downloader interface hides how bytes move. The production
// implementation shells out to yt-dlp, which handles HLS segment
// stitching and MP3 extraction; tests substitute fakes.
package download
