// Package ioutils provides file system and image utilities for the
// download pipeline.
//
// This package contains functions for:
//   - Filename sanitization and the canonical "Author - Title" format
//   - Collision-free output paths
//   - Audio file validation and temp file cleanup
//   - Cover art resizing and JPEG conversion
//
// All functions are pure or touch only the paths they are given, so
// they are safe to call from concurrent download workers.
package ioutils
