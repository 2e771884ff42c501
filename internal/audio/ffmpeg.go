// Package audio reads tags from library files and transcodes downloaded
// audio into the library format using FFmpeg.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Supported output extensions and their corresponding FFmpeg codecs and formats
var supportedExtensions = map[string]struct {
	codec    string
	format   string
	coverArt bool
}{
	"mp3":  {"libmp3lame", "mp3", true},
	"m4a":  {"aac", "mp4", true},
	"flac": {"flac", "flac", true},
	"ogg":  {"libvorbis", "ogg", false},
	"wav":  {"pcm_s16le", "wav", false},
}

const (
	defaultAudioBitrate = "128k"
	defaultID3Version   = "3"

	// time allowed for ffmpeg to exit after its context is cancelled
	processWaitDelay = 5 * time.Second
)

var (
	ErrFileNotFound     = fmt.Errorf("file not found")
	ErrFileEmpty        = fmt.Errorf("file is empty")
	ErrInvalidPath      = fmt.Errorf("invalid path")
	ErrInvalidExtension = fmt.Errorf("invalid file extension")
)

// SupportsExtension reports whether ext (without dot) is a valid output format.
func SupportsExtension(ext string) bool {
	_, ok := supportedExtensions[strings.ToLower(ext)]
	return ok
}

// ffmpegError wraps FFmpeg command errors with additional context
type ffmpegError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffmpegError) Unwrap() error {
	return e.wrapped
}

// newFFmpegError creates a new ffmpegError with truncated command and output
func newFFmpegError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	out := string(output)
	if len(out) > 2000 {
		out = "..." + out[len(out)-2000:]
	}
	return &ffmpegError{
		cmd:     cmdStr,
		output:  out,
		wrapped: err,
	}
}

type ffmpeg struct {
	binary  string
	bitrate string
}

// NewFFMPEGEngine returns a Transcoder that runs the given ffmpeg binary and
// encodes at bitrate (e.g. "128k").
func NewFFMPEGEngine(binary, bitrate string) *ffmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = defaultAudioBitrate
	}
	return &ffmpeg{binary: binary, bitrate: bitrate}
}

func (f *ffmpeg) validateFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("unable to access file: %s: %w", path, err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrFileEmpty, path)
	}

	return nil
}

// Transcode encodes InputPath into OutputPath with metadata and, when the
// format allows it, the cover art as an attached picture. Output is written to
// a hidden part file next to OutputPath and renamed on success.
func (f *ffmpeg) Transcode(ctx context.Context, p TranscodeParams) error {
	if err := f.validateFile(p.InputPath); err != nil {
		return fmt.Errorf("transcode failed: %w", err)
	}

	if p.CoverArtPath != "" {
		if err := f.validateFile(p.CoverArtPath); err != nil {
			return fmt.Errorf("cover art validation failed: %w", err)
		}
	}

	outputDir := filepath.Dir(p.OutputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	partPath := filepath.Join(outputDir, "."+filepath.Base(p.OutputPath)+".part")
	args, err := f.transcodeArgs(p, partPath)
	if err != nil {
		return err
	}

	slog.Debug("Transcoding audio",
		"input", p.InputPath,
		"output", p.OutputPath,
		"bitrate", f.bitrate,
		"cover", p.CoverArtPath != "",
	)

	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.WaitDelay = processWaitDelay
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(partPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFFmpegError(cmd, output, err)
	}

	if err := os.Rename(partPath, p.OutputPath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to move transcoded file into place: %w", err)
	}

	return nil
}

// transcodeArgs builds the ffmpeg argument list writing to outputPath.
func (f *ffmpeg) transcodeArgs(p TranscodeParams, outputPath string) ([]string, error) {
	ext := strings.TrimPrefix(filepath.Ext(p.OutputPath), ".")
	codecInfo, ok := supportedExtensions[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
	}

	withCover := p.CoverArtPath != "" && codecInfo.coverArt

	args := []string{"-y", "-i", p.InputPath}
	if withCover {
		args = append(args, "-i", p.CoverArtPath)
	}

	args = append(args, "-map", "0:a")
	if withCover {
		args = append(args,
			"-map", "1:v",
			"-c:v", "mjpeg",
			"-disposition:v:0", "attached_pic",
			"-metadata:s:v", "title=Album cover",
			"-metadata:s:v", "comment=Cover (front)",
		)
	}

	args = append(args,
		"-c:a", codecInfo.codec,
		"-b:a", f.bitrate,
		"-f", codecInfo.format,
	)
	if codecInfo.format == "mp3" {
		args = append(args, "-id3v2_version", defaultID3Version)
	}
	if codecInfo.format == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}

	metadata := []struct{ key, value string }{
		{"title", p.Title},
		{"artist", p.Artist},
		{"album_artist", p.Artist},
		{"album", p.Album},
		{"date", p.Year},
		{"comment", p.Comment},
	}
	for _, m := range metadata {
		if m.value == "" {
			continue
		}
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", m.key, m.value))
	}

	args = append(args, outputPath)
	return args, nil
}
