// Package catalog builds the track listing from the files in the audio
// directory. Nothing is cached: every Build re-reads the directory.
package catalog

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jaki95/yt-media-server/internal/audio"
	"github.com/jaki95/yt-media-server/internal/domain"
)

// AudioRoute is the URL path under which audio files are served.
const AudioRoute = "audios"

const (
	defaultTagReadTimeout     = 5 * time.Second
	defaultMaxConcurrentReads = 8
)

var audioExtensions = map[string]struct{}{
	".mp3": {},
	".wav": {},
	".ogg": {},
}

// TagReader extracts tags from a single file, returning nil when none can be read.
type TagReader interface {
	ReadTags(ctx context.Context, path string) *domain.TrackTags
}

type Options struct {
	AudioDir string
	BaseURL  string

	TagReadTimeout     time.Duration
	MaxConcurrentReads int
}

type Builder struct {
	reader  TagReader
	dir     string
	baseURL string
	timeout time.Duration
	workers int
}

func NewBuilder(reader TagReader, opts Options) *Builder {
	if opts.TagReadTimeout <= 0 {
		opts.TagReadTimeout = defaultTagReadTimeout
	}
	if opts.MaxConcurrentReads <= 0 {
		opts.MaxConcurrentReads = defaultMaxConcurrentReads
	}
	return &Builder{
		reader:  reader,
		dir:     opts.AudioDir,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.TagReadTimeout,
		workers: opts.MaxConcurrentReads,
	}
}

// IsAudioFile reports whether name has one of the catalogued extensions.
func IsAudioFile(name string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Build lists the audio directory and describes every audio file in it.
// Tracks are ordered by file name and numbered from 1 in that order. A file
// whose tags cannot be read is still listed, with defaults. The result is
// never nil.
func (b *Builder) Build(ctx context.Context) []domain.TrackDescriptor {
	names, err := b.listAudioFiles()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Audio directory does not exist", "dir", b.dir)
		} else {
			slog.Error("Failed to read audio directory", "dir", b.dir, "error", err)
		}
		return []domain.TrackDescriptor{}
	}

	tracks := make([]domain.TrackDescriptor, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, name := range names {
		g.Go(func() error {
			tracks[i] = b.describe(gctx, i+1, name)
			return nil
		})
	}
	_ = g.Wait()

	slog.Debug("Built catalog", "dir", b.dir, "tracks", len(tracks))
	return tracks
}

func (b *Builder) listAudioFiles() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsAudioFile(name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (b *Builder) describe(ctx context.Context, id int, name string) domain.TrackDescriptor {
	track := domain.TrackDescriptor{
		ID:       id,
		Title:    audio.BaseName(name),
		Artist:   audio.UnknownValue,
		Album:    audio.UnknownValue,
		AudioURL: b.audioURL(name),
	}

	if tags := b.readTags(ctx, filepath.Join(b.dir, name)); tags != nil {
		track.Title = tags.Title
		track.Artist = tags.Artist
		track.Album = tags.Album
		track.CoverArt = tags.CoverArt
	}
	return track
}

// readTags bounds a single tag read by the per-file timeout. A read that
// overruns is abandoned; its goroutine finishes in the background.
func (b *Builder) readTags(ctx context.Context, path string) *domain.TrackTags {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	result := make(chan *domain.TrackTags, 1)
	go func() {
		result <- b.reader.ReadTags(ctx, path)
	}()

	select {
	case tags := <-result:
		return tags
	case <-ctx.Done():
		slog.Warn("Tag read timed out", "path", path, "timeout", b.timeout)
		return nil
	}
}

// audioURL escapes name as a single path segment; JoinPath expects its
// elements to be escaped already.
func (b *Builder) audioURL(name string) string {
	u, err := url.JoinPath(b.baseURL, AudioRoute, url.PathEscape(name))
	if err != nil {
		slog.Warn("Invalid base URL", "baseURL", b.baseURL, "error", err)
		return b.baseURL + "/" + AudioRoute + "/" + url.PathEscape(name)
	}
	return u
}
