package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ohdiodl/internal/audio"
	"ohdiodl/internal/config"
	"ohdiodl/internal/fetch"
	"ohdiodl/internal/ioutils"
	"ohdiodl/internal/model"
	"ohdiodl/internal/scrape"
)

// ErrEmptyCatalog is returned by Run when discovery finds nothing.
var ErrEmptyCatalog = errors.New("no audiobooks found in category")

// ProgressLevel indicates the severity of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent is a human-readable pipeline update delivered to the
// front end.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Stats counts pipeline outcomes. All counters are atomic; Snapshot
// gives readers a consistent view.
type Stats struct {
	discovered atomic.Int64
	processed  atomic.Int64
	downloaded atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
}

// StatsSnapshot is a point-in-time copy of pipeline counters.
type StatsSnapshot struct {
	Discovered int64
	Processed  int64
	Downloaded int64
	Skipped    int64
	Failed     int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Discovered: s.discovered.Load(),
		Processed:  s.processed.Load(),
		Downloaded: s.downloaded.Load(),
		Skipped:    s.skipped.Load(),
		Failed:     s.failed.Load(),
	}
}

// SuccessRate is the share of processed items that ended in a
// download or a justified skip, in percent.
func (s StatsSnapshot) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Downloaded+s.Skipped) / float64(s.Processed) * 100
}

// Manager coordinates the whole pipeline: discovery, per-book
// metadata extraction, download and tagging.
//
// Items are processed concurrently up to MaxConcurrentDownloads, and
// one item's failure never aborts the batch; it is counted in Stats
// and reported through the progress callback.
type Manager struct {
	settings   *config.Settings
	client     *fetch.Client
	discoverer *scrape.Discoverer
	extractor  *scrape.Extractor
	downloader Downloader
	tagger     *audio.Tagger
	logger     *zap.Logger

	stats      Stats
	onProgress func(ProgressEvent)
}

// NewManager wires the full production pipeline from settings.
// onProgress may be nil; logger may be nil to disable logging.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := fetch.NewClient(fetch.Options{
		MaxRetries: settings.RetryAttempts,
		BaseDelay:  time.Duration(settings.DelayBetweenRequests * float64(time.Second)),
		Headers:    settings.Headers(),
	}, logger)
	resolver := scrape.NewResolver(client, logger)

	return &Manager{
		settings:   settings,
		client:     client,
		discoverer: scrape.NewDiscoverer(client, logger),
		extractor:  scrape.NewExtractor(client, resolver, logger),
		downloader: NewYtDlpDownloader(settings, client, logger),
		tagger:     audio.NewTagger(),
		logger:     logger,
		onProgress: onProgress,
	}
}

// Stats exposes the pipeline counters for live readers such as the
// TUI.
func (m *Manager) Stats() *Stats {
	return &m.stats
}

// Run processes every audiobook in a category. An empty categoryURL
// uses the default category. Returns ErrEmptyCatalog when discovery
// yields nothing; individual item failures only affect Stats.
func (m *Manager) Run(ctx context.Context, categoryURL string) error {
	entries, err := m.discoverer.Discover(ctx, categoryURL)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return ErrEmptyCatalog
	}

	m.stats.discovered.Store(int64(len(entries)))
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Found %d audiobooks", len(entries)),
		Level:   LevelInfo,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.MaxConcurrentDownloads)

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.processItem(ctx, entry.URL)
			m.interItemDelay(ctx)
			return nil
		})
	}

	err = g.Wait()
	m.logSummary()
	return err
}

// RunSingle processes one audiobook page URL outside of any category.
func (m *Manager) RunSingle(ctx context.Context, bookURL string) error {
	m.stats.discovered.Store(1)
	if err := m.processItem(ctx, bookURL); err != nil {
		m.logSummary()
		return err
	}
	m.logSummary()
	return nil
}

// processItem runs one audiobook through extract, download and tag.
// Every exit path accounts the item exactly once in Stats.
func (m *Manager) processItem(ctx context.Context, bookURL string) error {
	m.stats.processed.Add(1)

	md, err := m.extractor.Extract(ctx, bookURL)
	if err != nil {
		return m.fail(bookURL, "metadata extraction failed", err)
	}
	if md.PlaylistURL == "" {
		return m.fail(bookURL, "no playlist available", scrape.ErrNoPlaylist)
	}

	if err := ioutils.EnsureDir(m.settings.OutputDirectory); err != nil {
		return m.fail(bookURL, "cannot create output directory", err)
	}

	filename := ioutils.FormatAudiobookFilename(md.Author, md.Title, ".mp3")
	destPath := filepath.Join(m.settings.OutputDirectory, filename)

	// Skipping is decided on bare existence so reruns never overwrite
	// a file, whatever its size. Validity is only checked after a
	// download completes.
	if _, statErr := os.Stat(destPath); statErr == nil {
		if m.settings.SkipExisting {
			m.stats.skipped.Add(1)
			m.progress(ProgressEvent{
				Message: fmt.Sprintf("Skipping existing: %s", filename),
				Level:   LevelVerbose,
			})
			m.logger.Info("skipping existing file", zap.String("path", destPath))
			return nil
		}
		destPath = ioutils.SafePath(m.settings.OutputDirectory, filename)
	}

	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Downloading '%s' by %s", md.Title, md.Author),
		Level:   LevelInfo,
	})

	err = m.downloader.Download(ctx, md.PlaylistURL, destPath, func(p Progress) {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("'%s': %.1f%% at %s", md.Title, p.Percent, p.Speed),
			Level:   LevelVerbose,
		})
	})
	if err != nil {
		return m.fail(bookURL, "download failed", err)
	}
	m.stats.downloaded.Add(1)

	if m.settings.EmbedMetadata {
		m.embedTags(destPath, md)
	}

	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Downloaded: %s", filename),
		Level:   LevelSuccess,
	})
	return nil
}

// embedTags writes ID3 tags and cover art. Tagging problems are
// warnings; the download already succeeded.
func (m *Manager) embedTags(destPath string, md *model.AudiobookMetadata) {
	if len(md.ThumbnailData) > 0 {
		if cover, err := ioutils.ProcessCover(md.ThumbnailData); err != nil {
			m.logger.Warn("cover processing failed",
				zap.String("title", md.Title),
				zap.Error(err))
			md.ThumbnailData = nil
		} else {
			md.ThumbnailData = cover
		}
	}

	if err := m.tagger.WriteTags(destPath, md); err != nil {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Tagging failed for %s: %v", md.Title, err),
			Level:   LevelWarning,
		})
		m.logger.Warn("tagging failed",
			zap.String("path", destPath),
			zap.Error(err))
	}
}

func (m *Manager) fail(bookURL, reason string, err error) error {
	m.stats.failed.Add(1)
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("%s: %s", reason, bookURL),
		Level:   LevelError,
	})
	m.logger.Error(reason, zap.String("url", bookURL), zap.Error(err))
	return fmt.Errorf("%s: %w", reason, err)
}

// interItemDelay spaces item pipelines out so the catalog is not
// hammered by back-to-back page fetches.
func (m *Manager) interItemDelay(ctx context.Context) {
	if m.settings.DelayBetweenRequests <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.settings.DelayBetweenRequests * float64(time.Second))):
	}
}

func (m *Manager) logSummary() {
	s := m.stats.Snapshot()
	m.logger.Info("run complete",
		zap.Int64("discovered", s.Discovered),
		zap.Int64("processed", s.Processed),
		zap.Int64("downloaded", s.Downloaded),
		zap.Int64("skipped", s.Skipped),
		zap.Int64("failed", s.Failed),
		zap.Float64("successRate", s.SuccessRate()))
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Done: %d downloaded, %d skipped, %d failed (%.0f%% success)",
			s.Downloaded, s.Skipped, s.Failed, s.SuccessRate()),
		Level:   LevelInfo,
	})
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
