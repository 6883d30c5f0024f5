package download

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ohdiodl/internal/audio"
	"ohdiodl/internal/config"
	"ohdiodl/internal/fetch"
	"ohdiodl/internal/ioutils"
)

// Progress is one download progress update.
type Progress struct {
	Percent float64
	Speed   string
	ETA     string
}

// ProgressFunc receives download progress updates. May be nil.
type ProgressFunc func(Progress)

// MediaInfo summarizes a stream without downloading it.
type MediaInfo struct {
	Title    string
	Duration float64
	Formats  int
}

// Downloader retrieves an HLS stream into a local MP3 file. The
// pipeline manager depends on this interface; tests substitute fakes.
type Downloader interface {
	// Download fetches manifestURL into destPath as MP3, reporting
	// progress through onProgress when non-nil.
	Download(ctx context.Context, manifestURL, destPath string, onProgress ProgressFunc) error

	// Probe reports whether manifestURL answers with a parsable HLS
	// manifest.
	Probe(ctx context.Context, manifestURL string) bool

	// MediaInfo inspects the stream without downloading.
	MediaInfo(ctx context.Context, manifestURL string) (*MediaInfo, error)
}

// progressLine matches yt-dlp --newline output like
// "[download]  42.3% of 12.34MiB at 1.23MiB/s ETA 00:42".
var progressLine = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%\s+of\s+~?\S+\s+at\s+(\S+)\s+ETA\s+(\S+)`)

// YtDlpDownloader shells out to the yt-dlp binary for HLS retrieval
// and MP3 extraction. yt-dlp handles segment stitching, fragment
// retries and the ffmpeg post-processing step.
type YtDlpDownloader struct {
	settings *config.Settings
	client   *fetch.Client
	logger   *zap.Logger

	// binary is the yt-dlp executable name or path.
	binary string
}

// NewYtDlpDownloader creates a downloader using the yt-dlp binary on
// PATH.
func NewYtDlpDownloader(settings *config.Settings, client *fetch.Client, logger *zap.Logger) *YtDlpDownloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YtDlpDownloader{
		settings: settings,
		client:   client,
		logger:   logger,
		binary:   "yt-dlp",
	}
}

// Download runs yt-dlp against the manifest and waits for the MP3 to
// land at destPath. Partial artifacts are cleaned up on failure.
func (d *YtDlpDownloader) Download(ctx context.Context, manifestURL, destPath string, onProgress ProgressFunc) error {
	if manifestURL == "" {
		return fmt.Errorf("no manifest url")
	}

	args := d.downloadArgs(manifestURL, destPath)
	d.logger.Debug("running yt-dlp", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, d.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		d.reportProgress(scanner.Text(), onProgress)
	}

	if err := cmd.Wait(); err != nil {
		ioutils.CleanupTempFiles(destPath)
		return fmt.Errorf("yt-dlp: %w", err)
	}

	if !ioutils.IsValidAudioFile(destPath) {
		ioutils.CleanupTempFiles(destPath)
		return fmt.Errorf("yt-dlp produced no usable file at %s", destPath)
	}

	if onProgress != nil {
		onProgress(Progress{Percent: 100, Speed: "completed"})
	}
	return nil
}

// downloadArgs builds the yt-dlp invocation for one audiobook.
func (d *YtDlpDownloader) downloadArgs(manifestURL, destPath string) []string {
	// yt-dlp appends the post-processed extension itself.
	template := strings.TrimSuffix(destPath, filepath.Ext(destPath)) + ".%(ext)s"
	retries := strconv.Itoa(d.settings.RetryAttempts)

	return []string{
		"--newline",
		"--no-warnings",
		"-f", d.formatSelector(),
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", d.audioQuality(),
		"-o", template,
		"--retries", retries,
		"--fragment-retries", retries,
		"--concurrent-fragments", strconv.Itoa(d.settings.MaxConcurrentDownloads),
		"--user-agent", d.settings.UserAgent,
		manifestURL,
	}
}

// formatSelector maps the audio_quality setting to a yt-dlp format
// expression. Numeric values become an average-bitrate cap.
func (d *YtDlpDownloader) formatSelector() string {
	switch d.settings.AudioQuality {
	case "best":
		return "bestaudio/best"
	case "worst":
		return "worstaudio/worst"
	}
	if abr, err := strconv.Atoi(d.settings.AudioQuality); err == nil {
		return fmt.Sprintf("bestaudio[abr<=%d]/bestaudio/best", abr)
	}
	return "bestaudio/best"
}

// audioQuality maps the audio_quality setting to an ffmpeg VBR level
// or bitrate for the MP3 extraction step.
func (d *YtDlpDownloader) audioQuality() string {
	switch d.settings.AudioQuality {
	case "best":
		return "0"
	case "high":
		return "2"
	case "medium":
		return "4"
	case "low":
		return "7"
	case "worst":
		return "9"
	}
	if _, err := strconv.Atoi(d.settings.AudioQuality); err == nil {
		return d.settings.AudioQuality
	}
	return "0"
}

func (d *YtDlpDownloader) reportProgress(line string, onProgress ProgressFunc) {
	if onProgress == nil {
		return
	}
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return
	}
	onProgress(Progress{Percent: percent, Speed: m[2], ETA: m[3]})
}

// Probe fetches the manifest directly and checks it parses as HLS.
// Cheaper than spinning up yt-dlp for a URL that may be dead.
func (d *YtDlpDownloader) Probe(ctx context.Context, manifestURL string) bool {
	res, err := d.client.FetchPage(ctx, manifestURL)
	if err != nil || !res.OK() {
		return false
	}
	_, err = audio.ParseManifest(res.Body)
	return err == nil
}

// MediaInfo runs yt-dlp in simulate mode and decodes the stream
// description.
func (d *YtDlpDownloader) MediaInfo(ctx context.Context, manifestURL string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, d.binary,
		"-J", "--simulate", "--no-warnings",
		"--user-agent", d.settings.UserAgent,
		manifestURL)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp simulate: %w", err)
	}

	var payload struct {
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
		Formats  []any   `json:"formats"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	return &MediaInfo{
		Title:    payload.Title,
		Duration: payload.Duration,
		Formats:  len(payload.Formats),
	}, nil
}
