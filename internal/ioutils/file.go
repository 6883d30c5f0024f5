package ioutils

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MinValidAudioSize is the smallest plausible size for a complete
// audiobook file. Anything smaller is treated as a truncated download.
const MinValidAudioSize = 1024 * 1024

var (
	invalidChars = regexp.MustCompile(`[<>:"|?*\\/]`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	spacesScores = regexp.MustCompile(`[ _]+`)
)

// SanitizeFileName turns arbitrary title or author text into a name
// that is safe on every major filesystem.
//
// The following transformations are applied, in order:
//   - Invalid characters (<>:"|?*\/) → underscore
//   - Control characters → removed
//   - Runs of spaces and underscores → single underscore
//   - Leading/trailing spaces and dots → removed
//   - Empty result → "untitled"
//   - Names over 255 characters → truncated on a rune boundary,
//     preserving a short extension
//
// The function is idempotent: sanitizing a sanitized name returns it
// unchanged.
//
// Example:
//
//	SanitizeFileName("Le petit prince: tome 1/2") // "Le_petit_prince__tome_1_2"
//	SanitizeFileName("...")                       // "untitled"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = controlChars.ReplaceAllString(name, "")
	name = spacesScores.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")

	if name == "" {
		return "untitled"
	}

	if runes := []rune(name); len(runes) > 255 {
		ext := filepath.Ext(name)
		// Only preserve short real extensions; a long "extension" is
		// just a dot inside the name.
		if len(ext) > 10 {
			ext = ""
		}
		name = string(runes[:255-len([]rune(ext))]) + ext
	}

	return name
}

// FormatAudiobookFilename builds the canonical "Author - Title.ext"
// filename for a finished audiobook. Missing fields fall back to
// "Unknown Author" and "Unknown Title" so the result is always usable.
//
// Example:
//
//	FormatAudiobookFilename("Jane Doe", "Le voyage", ".mp3")
//	// "Jane_Doe_-_Le_voyage.mp3"
func FormatAudiobookFilename(author, title, ext string) string {
	if strings.TrimSpace(author) == "" {
		author = "Unknown Author"
	}
	if strings.TrimSpace(title) == "" {
		title = "Unknown Title"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return SanitizeFileName(fmt.Sprintf("%s - %s", author, title)) + ext
}

// SafePath returns a path under dir that does not collide with an
// existing file. If "name.ext" exists, "name_1.ext", "name_2.ext" and
// so on are tried in order.
func SafePath(dir, filename string) string {
	candidate := filepath.Join(dir, filename)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// EnsureDir creates a directory and all parents with mode 0755.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// CopyFile copies a file from source to destination, truncating the
// destination if it exists.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}

// IsValidAudioFile reports whether path exists and is large enough to
// be a complete audiobook. Used for post-download verification.
func IsValidAudioFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() >= MinValidAudioSize
}

// CleanupTempFiles removes leftover partial-download artifacts
// (".part", ".ytdl", ".temp" suffixes) belonging to the given target
// path. Removal errors are ignored; a stale temp file is harmless.
func CleanupTempFiles(target string) {
	for _, suffix := range []string{".part", ".ytdl", ".temp"} {
		os.Remove(target + suffix)
	}
}

// ExtensionFromURL extracts a file extension from a media URL, falling
// back to the given default when the URL has none or carries query
// noise.
//
// Example:
//
//	ExtensionFromURL("https://cdn.example.com/a/cover.png?v=2", ".jpg") // ".png"
//	ExtensionFromURL("https://cdn.example.com/a/cover", ".jpg")         // ".jpg"
func ExtensionFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := filepath.Ext(u.Path)
	if ext == "" || len(ext) > 5 {
		return fallback
	}
	return strings.ToLower(ext)
}
