package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 250 * time.Millisecond

var errLockNotAcquired = errors.New("title lock not acquired")

// lockTitle serializes acquisitions that write the same sanitized title,
// across goroutines and processes sharing lockDir. Lock files are left in
// place after unlock: a waiter may already hold the open file, so removing
// the path would let a later caller lock a fresh inode alongside it.
func lockTitle(ctx context.Context, lockDir, name string) (unlock func(), err error) {
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(lockDir, name+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %q: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %q", errLockNotAcquired, name)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("Failed to release title lock", "name", name, "error", err)
		}
	}, nil
}
