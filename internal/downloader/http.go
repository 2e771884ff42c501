package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	defaultUserAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	defaultThumbnailTimeout = 2 * time.Minute

	// thumbnails larger than this are rejected
	maxThumbnailSize = 20 << 20
)

var (
	ErrEmptyThumbnail = errors.New("downloaded thumbnail is empty")
	ErrNotAnImage     = errors.New("response is not an image")
)

// HTTPThumbnailFetcher downloads thumbnails over plain HTTP(S).
type HTTPThumbnailFetcher struct {
	client *http.Client
}

// NewHTTPThumbnailFetcher returns a fetcher using client, or a client with a
// sensible timeout when nil.
func NewHTTPThumbnailFetcher(client *http.Client) *HTTPThumbnailFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultThumbnailTimeout}
	}
	return &HTTPThumbnailFetcher{client: client}
}

// Fetch streams the image at thumbnailURL into dst.
func (d *HTTPThumbnailFetcher) Fetch(ctx context.Context, thumbnailURL string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnailURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("thumbnail download failed with status: %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil && !strings.HasPrefix(mediaType, "image/") && mediaType != "application/octet-stream" {
			return 0, fmt.Errorf("%w: %s", ErrNotAnImage, mediaType)
		}
	}

	bytesWritten, err := io.Copy(dst, io.LimitReader(resp.Body, maxThumbnailSize+1))
	if err != nil {
		return bytesWritten, fmt.Errorf("failed to save thumbnail: %w", err)
	}
	if bytesWritten == 0 {
		return 0, ErrEmptyThumbnail
	}
	if bytesWritten > maxThumbnailSize {
		return bytesWritten, fmt.Errorf("thumbnail exceeds %d bytes", maxThumbnailSize)
	}

	slog.Debug("Downloaded thumbnail", "url", thumbnailURL, "size", bytesWritten)
	return bytesWritten, nil
}
