package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"ohdiodl/internal/fetch"
)

// ValidationAPIBaseURL is the media validation endpoint that maps a
// media identifier to its streaming manifest.
const ValidationAPIBaseURL = "https://services.radio-canada.ca/media/validation/v2/"

var (
	// ErrNoMediaID means no media identifier could be found anywhere
	// in the page.
	ErrNoMediaID = errors.New("no media id found")

	// ErrNoPlaylist means the validation API answered but no m3u8 URL
	// could be located in its response.
	ErrNoPlaylist = errors.New("no playlist url found")
)

var (
	mediaIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"mediaId"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)"mediaId"\s*:\s*(\d+)`),
		regexp.MustCompile(`(?i)mediaId["']?\s*:\s*["']?([^"',\s}<]+)`),
		regexp.MustCompile(`(?i)media-id["']?\s*:\s*["']?([^"',\s}<]+)`),
	}
	scriptNumericID = regexp.MustCompile(`\b(\d{7,8})\b`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
)

// mediaIDSelectors are elements whose data attributes may carry the
// media identifier.
var mediaIDSelectors = []string{
	"[data-media-id]",
	"[data-mediaid]",
	"[data-id]",
	".media-player[data-id]",
	".audio-player[data-id]",
	".listen-button[data-id]",
	".play-button[data-id]",
}

// Resolver turns an audiobook page into its streaming manifest URL.
//
// Resolution is a two-step process: find the page's media identifier,
// then ask the validation API for the corresponding m3u8 manifest.
// The identifier hides in different places depending on the page
// revision, so three methods run in order: regex over embedded JSON,
// data attributes on player elements, and 7-8 digit numerals inside
// script tags.
type Resolver struct {
	client *fetch.Client
	apiURL string
	logger *zap.Logger
}

// NewResolver creates a Resolver against the production validation
// API. A nil logger disables logging.
func NewResolver(client *fetch.Client, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, apiURL: ValidationAPIBaseURL, logger: logger}
}

// NewResolverWithBase creates a Resolver against a specific validation
// endpoint instead of the production one.
func NewResolverWithBase(client *fetch.Client, apiBaseURL string, logger *zap.Logger) *Resolver {
	r := NewResolver(client, logger)
	r.apiURL = apiBaseURL
	return r
}

// Resolve extracts the media identifier from pageHTML and resolves it
// to an m3u8 manifest URL through the validation API.
//
// Returns ErrNoMediaID when the page carries no identifier and
// ErrNoPlaylist when the API yields no usable manifest.
func (r *Resolver) Resolve(ctx context.Context, pageHTML, pageURL string) (string, error) {
	mediaID, ok := r.MediaID(pageHTML)
	if !ok {
		r.logger.Warn("no media id on page", zap.String("url", pageURL))
		return "", ErrNoMediaID
	}
	r.logger.Debug("media id found",
		zap.String("url", pageURL),
		zap.String("mediaID", mediaID))

	playlistURL, err := r.playlistFromAPI(ctx, mediaID)
	if err != nil {
		r.logger.Warn("playlist lookup failed",
			zap.String("mediaID", mediaID),
			zap.Error(err))
		return "", err
	}
	r.logger.Info("playlist resolved",
		zap.String("url", pageURL),
		zap.String("playlist", playlistURL))
	return playlistURL, nil
}

// MediaID searches pageHTML for a media identifier, trying the three
// extraction methods in order.
func (r *Resolver) MediaID(pageHTML string) (string, bool) {
	// Method 1: identifiers embedded in JSON blobs.
	for _, pattern := range mediaIDPatterns {
		if m := pattern.FindStringSubmatch(pageHTML); m != nil {
			id := strings.Trim(m[1], `"'`)
			if id != "" {
				return id, true
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", false
	}

	// Method 2: data attributes on player elements. Only numeric
	// values qualify; data-id is reused for unrelated things.
	for _, sel := range mediaIDSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			for _, attr := range []string{"data-media-id", "data-mediaid", "data-id"} {
				if v, ok := el.Attr(attr); ok && digitsOnly.MatchString(v) {
					found = v
					return false
				}
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}

	// Method 3: the first 7-8 digit numeral inside a script tag.
	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := scriptNumericID.FindStringSubmatch(s.Text()); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	return "", false
}

// playlistFromAPI asks the validation API for the manifest URL of a
// media identifier.
func (r *Resolver) playlistFromAPI(ctx context.Context, mediaID string) (string, error) {
	params := url.Values{
		"appCode":         {"medianet"},
		"connectionType":  {"hd"},
		"deviceType":      {"ipad"},
		"idMedia":         {mediaID},
		"multibitrate":    {"true"},
		"output":          {"json"},
		"tech":            {"hls"},
		"manifestVersion": {"2"},
	}

	res, err := r.client.FetchPage(ctx, r.apiURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("%w: validation api %s", ErrNoPlaylist, res.Kind)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Body), &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoPlaylist, err)
	}

	// Preferred: the top-level url field.
	if u, ok := payload["url"].(string); ok && strings.HasSuffix(u, ".m3u8") {
		return u, nil
	}

	// Alternative: per-result urls inside validationResults.
	if results, ok := payload["validationResults"].([]any); ok {
		for _, item := range results {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if u, ok := entry["url"].(string); ok && strings.HasSuffix(u, ".m3u8") {
				return u, nil
			}
		}
	}

	// Last resort: any m3u8 string anywhere in the response.
	if u, ok := findM3U8(payload); ok {
		return u, nil
	}

	return "", fmt.Errorf("%w: media id %s", ErrNoPlaylist, mediaID)
}

// findM3U8 walks decoded JSON depth-first for any string ending in
// ".m3u8".
func findM3U8(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if strings.HasSuffix(val, ".m3u8") {
			return val, true
		}
	case map[string]any:
		for _, child := range val {
			if u, ok := findM3U8(child); ok {
				return u, true
			}
		}
	case []any:
		for _, child := range val {
			if u, ok := findM3U8(child); ok {
				return u, true
			}
		}
	}
	return "", false
}
