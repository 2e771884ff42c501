// Package pipeline turns a remote video reference into a tagged local audio
// file plus a chapter sidecar.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaki95/yt-media-server/internal/audio"
	"github.com/jaki95/yt-media-server/internal/chapters"
	"github.com/jaki95/yt-media-server/internal/domain"
	"github.com/jaki95/yt-media-server/internal/downloader"
	"github.com/jaki95/yt-media-server/internal/progress"
	"github.com/jaki95/yt-media-server/internal/storage"
)

// time allowed for mirroring once the acquisition itself has finished
const mirrorTimeout = 2 * time.Minute

// Deps are the collaborators of a Pipeline. Resolver, Mirror and the
// progress tracker are optional.
type Deps struct {
	Prober     downloader.Prober
	Resolver   downloader.ThumbnailResolver
	Thumbnails downloader.ThumbnailFetcher
	Fetcher    downloader.AudioFetcher
	Transcoder audio.Transcoder
	Chapters   *chapters.Store
	Mirror     storage.Storage
}

type Options struct {
	AudioDir      string
	TempDir       string
	LockDir       string
	FileExtension string
	Timeout       time.Duration
}

// Pipeline runs acquisitions. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Prober == nil || deps.Thumbnails == nil || deps.Fetcher == nil || deps.Transcoder == nil || deps.Chapters == nil {
		return nil, errors.New("pipeline: missing dependency")
	}

	opts.FileExtension = strings.ToLower(strings.TrimPrefix(opts.FileExtension, "."))
	if opts.FileExtension == "" {
		opts.FileExtension = "mp3"
	}
	if !audio.SupportsExtension(opts.FileExtension) {
		return nil, fmt.Errorf("%w: %s", audio.ErrInvalidExtension, opts.FileExtension)
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	return &Pipeline{deps: deps, opts: opts}, nil
}

type acquireConfig struct {
	tracker *progress.Tracker
}

type AcquireOption func(*acquireConfig)

// WithProgress reports stage events of the run to tracker.
func WithProgress(tracker *progress.Tracker) AcquireOption {
	return func(c *acquireConfig) {
		c.tracker = tracker
	}
}

// Acquire probes ref, fetches its thumbnail and audio, writes the tagged file
// to the audio directory and persists its chapters. Any failure aborts the
// run and is returned as an *AcquisitionError.
func (p *Pipeline) Acquire(ctx context.Context, ref string, options ...AcquireOption) (*domain.AcquisitionResult, error) {
	var cfg acquireConfig
	for _, o := range options {
		o(&cfg)
	}

	runID := uuid.NewString()
	logger := slog.With("run", runID, "ref", ref)

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	r := &run{
		Pipeline: p,
		ref:      ref,
		logger:   logger,
		tracker:  cfg.tracker,
	}
	if r.tracker != nil {
		r.tracker.Start(runID)
	}

	start := time.Now()
	logger.Info("Starting acquisition")

	result, err := r.execute(ctx)
	if err != nil {
		logger.Error("Acquisition failed", "kind", KindOf(err).String(), "error", err)
		if r.tracker != nil {
			r.tracker.SetError(err)
		}
		return nil, err
	}

	logger.Info("Acquisition complete",
		"chapters", len(result.Chapters),
		"duration", time.Since(start).Round(time.Millisecond).String())
	return result, nil
}

// run carries the state of a single acquisition.
type run struct {
	*Pipeline
	ref     string
	logger  *slog.Logger
	tracker *progress.Tracker
}

func (r *run) report(stage progress.Stage, pct float64, message string) {
	r.logger.Debug(message, "stage", stage, "progress", pct)
	if r.tracker != nil {
		r.tracker.Update(stage, pct, message)
	}
}

func (r *run) fail(ctx context.Context, kind Kind, err error) error {
	return newError(ctx, kind, r.ref, err)
}

func (r *run) execute(ctx context.Context) (*domain.AcquisitionResult, error) {
	r.report(progress.StageProbing, 10, "Fetching video information")
	info, err := r.deps.Prober.Probe(ctx, r.ref)
	if err != nil {
		return nil, r.fail(ctx, KindProbe, err)
	}
	if r.tracker != nil {
		r.tracker.SetTitle(info.Title)
	}
	r.logger.Info("Video information fetched", "title", info.Title, "chapters", len(info.Chapters))

	r.report(progress.StageThumbnail, 25, "Downloading thumbnail")
	thumbnailPath, err := r.fetchThumbnail(ctx, info)
	if thumbnailPath != "" {
		defer r.remove(thumbnailPath)
	}
	if err != nil {
		return nil, r.fail(ctx, KindThumbnail, err)
	}

	name := domain.SanitizeTitle(info.Title)
	lockDir := r.opts.LockDir
	if lockDir == "" {
		lockDir = filepath.Join(r.opts.TempDir, ".locks")
	}
	unlock, err := lockTitle(ctx, lockDir, name)
	if err != nil {
		return nil, r.fail(ctx, KindLock, err)
	}
	defer unlock()

	outputPath := filepath.Join(r.opts.AudioDir, name+"."+r.opts.FileExtension)
	if err := r.convert(ctx, info, thumbnailPath, outputPath); err != nil {
		return nil, r.fail(ctx, KindConversion, err)
	}

	r.report(progress.StageChapters, 95, "Saving chapters")
	marks := info.ChapterMarks()
	if len(marks) > 0 {
		if err := r.deps.Chapters.Write(name, marks); err != nil {
			return nil, r.fail(ctx, KindChapters, err)
		}
	}

	r.mirror(ctx, name, outputPath, len(marks) > 0)

	r.report(progress.StageComplete, 100, "Acquisition complete")
	return &domain.AcquisitionResult{
		StatusCode: http.StatusOK,
		Chapters:   marks,
	}, nil
}

// fetchThumbnail downloads the thumbnail into a temp file and returns its
// path. The path is returned even on failure so the caller can remove it.
func (r *run) fetchThumbnail(ctx context.Context, info *domain.VideoInfo) (string, error) {
	thumbnailURL := info.Thumbnail
	if thumbnailURL == "" {
		if r.deps.Resolver == nil {
			return "", downloader.ErrNoThumbnail
		}
		resolved, err := r.deps.Resolver.Resolve(ctx, info)
		if err != nil {
			return "", err
		}
		thumbnailURL = resolved
	}

	if err := os.MkdirAll(r.opts.TempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	f, err := os.CreateTemp(r.opts.TempDir, "thumbnail-*")
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail file: %w", err)
	}

	_, fetchErr := r.deps.Thumbnails.Fetch(ctx, thumbnailURL, f)
	closeErr := f.Close()
	if fetchErr != nil {
		return f.Name(), fetchErr
	}
	if closeErr != nil {
		return f.Name(), fmt.Errorf("failed to write thumbnail: %w", closeErr)
	}

	return f.Name(), nil
}

func (r *run) convert(ctx context.Context, info *domain.VideoInfo, thumbnailPath, outputPath string) error {
	workDir, err := os.MkdirTemp(r.opts.TempDir, "acquire-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			r.logger.Warn("Failed to remove work directory", "path", workDir, "error", err)
		}
	}()

	r.report(progress.StageConverting, 40, "Downloading audio")
	sourcePath, err := r.deps.Fetcher.FetchAudio(ctx, r.ref, workDir)
	if err != nil {
		return err
	}

	r.report(progress.StageConverting, 65, "Converting audio")
	params := audio.TranscodeParams{
		InputPath:    sourcePath,
		OutputPath:   outputPath,
		CoverArtPath: thumbnailPath,
		Title:        info.Title,
		Artist:       info.Artist(),
		Year:         info.Year(),
		Comment:      info.WebpageURL,
	}
	if err := r.deps.Transcoder.Transcode(ctx, params); err != nil {
		return err
	}

	r.report(progress.StageConverting, 90, "Conversion finished")
	r.logger.Info("Audio written", "path", outputPath)
	return nil
}

// mirror publishes the finished artifacts. Failures are logged only.
func (r *run) mirror(ctx context.Context, name, outputPath string, hasChapters bool) {
	if r.deps.Mirror == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	if err := r.deps.Mirror.Publish(ctx, outputPath, storage.AudioPrefix+filepath.Base(outputPath)); err != nil {
		r.logger.Warn("Failed to mirror audio", "path", outputPath, "error", err)
	}
	if hasChapters {
		sidecar := r.deps.Chapters.Path(name)
		if err := r.deps.Mirror.Publish(ctx, sidecar, storage.ChaptersPrefix+filepath.Base(sidecar)); err != nil {
			r.logger.Warn("Failed to mirror chapters", "path", sidecar, "error", err)
		}
	}
}

func (r *run) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("Failed to remove temp file", "path", path, "error", err)
	}
}
