package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"github.com/jaki95/yt-media-server/internal/domain"
)

// UnknownValue is used for artist and album when a file does not carry them.
const UnknownValue = "Unknown"

var errNoTags = errors.New("no tags found")

// TagReader extracts embedded metadata from audio files.
type TagReader struct{}

func NewTagReader() *TagReader {
	return &TagReader{}
}

// ReadTags returns the tags of the file at path with blanks filled in, or nil
// when the file has no readable metadata. Corrupt or unsupported files are not
// an error.
func (r *TagReader) ReadTags(ctx context.Context, path string) *domain.TrackTags {
	if ctx.Err() != nil {
		return nil
	}

	tags, err := readGenericTags(path)
	if err != nil && strings.EqualFold(filepath.Ext(path), ".mp3") {
		tags, err = readID3v2Tags(path)
	}
	if err != nil {
		slog.Debug("No readable tags", "path", path, "error", err)
		return nil
	}

	if tags.Title == "" {
		tags.Title = BaseName(path)
	}
	if tags.Artist == "" {
		tags.Artist = UnknownValue
	}
	if tags.Album == "" {
		tags.Album = UnknownValue
	}
	return tags
}

// BaseName returns the file name without directory and extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func readGenericTags(path string) (tags *domain.TrackTags, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// dhowden/tag can panic on truncated frames.
	defer func() {
		if r := recover(); r != nil {
			tags, err = nil, fmt.Errorf("tag decoder panic: %v", r)
		}
	}()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	tags = &domain.TrackTags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
	}
	if pic := m.Picture(); pic != nil {
		tags.CoverArt = coverDataURI(pic.MIMEType, pic.Ext, pic.Data)
	}

	if isEmpty(tags) {
		return nil, errNoTags
	}
	return tags, nil
}

func readID3v2Tags(path string) (*domain.TrackTags, error) {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	defer t.Close()

	tags := &domain.TrackTags{
		Title:  strings.TrimSpace(t.Title()),
		Artist: strings.TrimSpace(t.Artist()),
		Album:  strings.TrimSpace(t.Album()),
	}

	for _, fr := range t.GetFrames(t.CommonID("Attached picture")) {
		pic, ok := fr.(id3v2.PictureFrame)
		if !ok || len(pic.Picture) == 0 {
			continue
		}
		tags.CoverArt = coverDataURI(pic.MimeType, "", pic.Picture)
		break
	}

	if isEmpty(tags) {
		return nil, errNoTags
	}
	return tags, nil
}

func isEmpty(tags *domain.TrackTags) bool {
	return tags.Title == "" && tags.Artist == "" && tags.Album == "" && tags.CoverArt == nil
}

// coverDataURI encodes an embedded picture as a base64 data URI.
func coverDataURI(mimeType, ext string, data []byte) *string {
	if len(data) == 0 {
		return nil
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !strings.Contains(mimeType, "/") {
		// ID3v2.2 stores a format such as "JPG" instead of a MIME type.
		if ext == "" {
			ext = mimeType
		}
		mimeType = ""
		if ext != "" {
			mimeType = mime.TypeByExtension("." + strings.ToLower(ext))
		}
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return &uri
}
