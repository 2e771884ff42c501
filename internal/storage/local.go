package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Object name prefixes map to these local roots.
const (
	AudioPrefix    = "audios/"
	ChaptersPrefix = "chapters/"
)

// LocalStorage serves artifacts straight from the server's own directories.
// Publish copies only when the file is not already where it belongs.
type LocalStorage struct {
	audioDir string
	dataDir  string
}

func NewLocalStorage(audioDir, dataDir string) *LocalStorage {
	return &LocalStorage{audioDir: audioDir, dataDir: dataDir}
}

func (s *LocalStorage) Publish(ctx context.Context, localPath, objectName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(objectName)
	if err != nil {
		return err
	}

	src, err := filepath.Abs(localPath)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", localPath, err)
	}
	dst, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	if src == dst {
		return nil
	}

	return copyFile(src, dst)
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var results []string
	for _, root := range []struct {
		prefix string
		dir    string
	}{
		{AudioPrefix, s.audioDir},
		{ChaptersPrefix, s.dataDir},
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		files, err := os.ReadDir(root.dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}

		for _, file := range files {
			if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
				continue
			}
			name := root.prefix + file.Name()
			if strings.HasPrefix(name, prefix) {
				results = append(results, name)
			}
		}
	}

	sort.Strings(results)
	return results, nil
}

func (s *LocalStorage) Close() error {
	return nil
}

func (s *LocalStorage) resolve(objectName string) (string, error) {
	var dir, rest string
	switch {
	case strings.HasPrefix(objectName, AudioPrefix):
		dir, rest = s.audioDir, strings.TrimPrefix(objectName, AudioPrefix)
	case strings.HasPrefix(objectName, ChaptersPrefix):
		dir, rest = s.dataDir, strings.TrimPrefix(objectName, ChaptersPrefix)
	default:
		return "", fmt.Errorf("unsupported object name %q", objectName)
	}

	if rest == "" || rest != filepath.Base(rest) {
		return "", fmt.Errorf("unsupported object name %q", objectName)
	}
	return filepath.Join(dir, rest), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return out.Close()
}
