// Package chapters persists per-track chapter marks as JSON sidecar files.
package chapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaki95/yt-media-server/internal/domain"
)

const sidecarExt = ".json"

// Store reads and writes chapter sidecars in a single directory. Sidecars are
// named after the track's sanitized title.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the sidecar location for a track name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, domain.SanitizeTitle(name)+sidecarExt)
}

// Read returns the chapters stored for name. A missing, unreadable or empty
// sidecar yields the single default "Main" chapter.
func (s *Store) Read(name string) []domain.ChapterMark {
	path := s.Path(name)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read chapter sidecar", "path", path, "error", err)
		}
		return domain.DefaultChapters()
	}

	var marks []domain.ChapterMark
	if err := json.Unmarshal(data, &marks); err != nil {
		slog.Warn("Corrupt chapter sidecar", "path", path, "error", err)
		return domain.DefaultChapters()
	}

	if len(marks) == 0 {
		return domain.DefaultChapters()
	}
	return marks
}

// Write replaces the sidecar for name with marks.
func (s *Store) Write(name string, marks []domain.ChapterMark) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create chapter directory: %w", err)
	}

	if marks == nil {
		marks = []domain.ChapterMark{}
	}
	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chapters: %w", err)
	}

	path := s.Path(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write chapter sidecar %s: %w", path, err)
	}

	slog.Debug("Wrote chapter sidecar", "path", path, "chapters", len(marks))
	return nil
}

// Exists reports whether a sidecar has been written for name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}
