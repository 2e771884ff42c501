// Package service assembles the catalog, chapter store and acquisition
// pipeline from configuration.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaki95/yt-media-server/config"
	"github.com/jaki95/yt-media-server/internal/audio"
	"github.com/jaki95/yt-media-server/internal/catalog"
	"github.com/jaki95/yt-media-server/internal/chapters"
	"github.com/jaki95/yt-media-server/internal/downloader"
	"github.com/jaki95/yt-media-server/internal/pipeline"
	"github.com/jaki95/yt-media-server/internal/storage"
)

// Service holds the components shared by the HTTP server and the CLI.
type Service struct {
	Catalog  *catalog.Builder
	Chapters *chapters.Store
	Pipeline *pipeline.Pipeline
	Storage  storage.Storage
}

// New builds every component described by cfg and creates the directories
// they write to.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	for _, dir := range []string{cfg.Storage.AudioDir, cfg.Storage.ImageDir, cfg.Storage.DataDir, cfg.Storage.TempDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	chapterStore := chapters.NewStore(cfg.Storage.DataDir)
	ytdlp := downloader.NewYtDlp(cfg.Audio.YtDlpPath)

	var mirror storage.Storage
	if cfg.Storage.Type != config.StorageLocal {
		mirror = store
	}

	p, err := pipeline.New(pipeline.Deps{
		Prober:     ytdlp,
		Resolver:   downloader.NewPageThumbnailResolver(0),
		Thumbnails: downloader.NewHTTPThumbnailFetcher(nil),
		Fetcher:    ytdlp,
		Transcoder: audio.NewFFMPEGEngine(cfg.Audio.FFmpegPath, cfg.Audio.Bitrate),
		Chapters:   chapterStore,
		Mirror:     mirror,
	}, pipeline.Options{
		AudioDir:      cfg.Storage.AudioDir,
		TempDir:       cfg.Storage.TempDir,
		LockDir:       filepath.Join(cfg.Storage.DataDir, ".locks"),
		FileExtension: cfg.Audio.FileExtension,
		Timeout:       cfg.Acquisition.Timeout.Std(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	builder := catalog.NewBuilder(audio.NewTagReader(), catalog.Options{
		AudioDir:           cfg.Storage.AudioDir,
		BaseURL:            cfg.BaseURL,
		TagReadTimeout:     cfg.Catalog.TagReadTimeout.Std(),
		MaxConcurrentReads: cfg.Catalog.MaxConcurrentReads,
	})

	slog.Debug("Service initialised",
		"audioDir", cfg.Storage.AudioDir,
		"dataDir", cfg.Storage.DataDir,
		"storage", cfg.Storage.Type)

	return &Service{
		Catalog:  builder,
		Chapters: chapterStore,
		Pipeline: p,
		Storage:  store,
	}, nil
}

func (s *Service) Close() error {
	return s.Storage.Close()
}
