package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaki95/yt-media-server/internal/domain"
)

const (
	// time allowed for yt-dlp to exit after its context is cancelled
	processWaitDelay = 5 * time.Second

	sourceFilePrefix = "source"
)

var (
	ErrYtDlpNotAvailable = errors.New("yt-dlp not available")
	ErrUnsupportedURL    = errors.New("unsupported url")
	ErrInvalidProbe      = errors.New("invalid probe output")
	ErrNoAudioFiles      = errors.New("no audio files found")
)

// commandError wraps a failed external command with its stderr.
type commandError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *commandError) Error() string {
	return fmt.Sprintf("command failed: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *commandError) Unwrap() error {
	return e.wrapped
}

func newCommandError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	out := strings.TrimSpace(string(output))
	if len(out) > 2000 {
		out = "..." + out[len(out)-2000:]
	}
	return &commandError{cmd: cmdStr, output: out, wrapped: err}
}

// YtDlp probes and downloads through the yt-dlp command line tool.
type YtDlp struct {
	binary string
}

func NewYtDlp(binary string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary}
}

// SupportsURL reports whether ref is an absolute http(s) URL.
func (y *YtDlp) SupportsURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Probe dumps the metadata of a single video.
func (y *YtDlp) Probe(ctx context.Context, ref string) (*domain.VideoInfo, error) {
	if !y.SupportsURL(ref) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, ref)
	}

	slog.Debug("Probing remote reference", "ref", ref)

	out, err := y.run(ctx,
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		ref,
	)
	if err != nil {
		return nil, err
	}

	var info domain.VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProbe, err)
	}
	if strings.TrimSpace(info.Title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidProbe)
	}
	if info.WebpageURL == "" {
		info.WebpageURL = ref
	}

	return &info, nil
}

// FetchAudio downloads the best audio stream of ref into outputDir.
func (y *YtDlp) FetchAudio(ctx context.Context, ref, outputDir string) (string, error) {
	if !y.SupportsURL(ref) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, ref)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	slog.Info("Downloading audio stream", "ref", ref, "outputDir", outputDir)

	_, err := y.run(ctx,
		"--format", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--no-part",
		"--output", filepath.Join(outputDir, sourceFilePrefix+".%(ext)s"),
		ref,
	)
	if err != nil {
		return "", err
	}

	return findDownloadedFile(outputDir)
}

func (y *YtDlp) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, y.binary, args...)
	cmd.WaitDelay = processWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrYtDlpNotAvailable, err)
		}
		return nil, newCommandError(cmd, stderr.Bytes(), err)
	}

	return stdout.Bytes(), nil
}

// findDownloadedFile finds the most recently written source file in the directory
func findDownloadedFile(outputDir string) (string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("error scanning output directory: %w", err)
	}

	var mostRecentFile string
	var mostRecentTime time.Time

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), sourceFilePrefix+".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if mostRecentFile == "" || info.ModTime().After(mostRecentTime) {
			mostRecentTime = info.ModTime()
			mostRecentFile = filepath.Join(outputDir, entry.Name())
		}
	}

	if mostRecentFile == "" {
		return "", fmt.Errorf("%w: in directory %s", ErrNoAudioFiles, outputDir)
	}

	return mostRecentFile, nil
}
