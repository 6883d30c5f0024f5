// Package audio handles the audio side of the pipeline: ID3 tagging
// of finished MP3 files and HLS manifest inspection.
//
// # Tagging
//
// The Tagger maps an audiobook metadata record onto ID3v2 frames.
// Standard frames carry title, author, year, genre, narrator and
// series position; publisher, ISBN, duration, source URL and language
// live in TXXX user-defined frames; the description becomes a French
// comment frame and cover art the front cover picture.
//
// # Manifests
//
// ParseManifest reads m3u8 playlists just deeply enough to tell master
// from media manifests, count segments, and pick the best variant.
// The downloader uses it to probe resolved playlist URLs before
// spending time on a full download.
package audio
