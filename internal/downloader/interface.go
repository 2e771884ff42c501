// Package downloader talks to remote video sources: it probes metadata,
// downloads the audio stream and fetches thumbnails.
package downloader

import (
	"context"
	"io"

	"github.com/jaki95/yt-media-server/internal/domain"
)

// Prober fetches remote metadata without downloading media.
type Prober interface {
	Probe(ctx context.Context, ref string) (*domain.VideoInfo, error)
}

// AudioFetcher downloads the best available audio stream of ref into
// outputDir and returns the path of the downloaded file.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, ref, outputDir string) (string, error)
}

// ThumbnailFetcher streams the image at url into dst.
type ThumbnailFetcher interface {
	Fetch(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// ThumbnailResolver finds a thumbnail URL when the probe did not report one.
type ThumbnailResolver interface {
	Resolve(ctx context.Context, info *domain.VideoInfo) (string, error)
}
