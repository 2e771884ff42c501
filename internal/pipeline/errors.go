package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies which part of an acquisition failed.
type Kind int

const (
	KindProbe Kind = iota + 1
	KindThumbnail
	KindConversion
	KindChapters
	KindTimeout
	KindCancelled
	KindLock
)

var (
	ErrProbe      = errors.New("probe failed")
	ErrThumbnail  = errors.New("thumbnail fetch failed")
	ErrConversion = errors.New("conversion failed")
	ErrChapters   = errors.New("chapter persistence failed")
	ErrTimeout    = errors.New("acquisition timed out")
	ErrCancelled  = errors.New("acquisition cancelled")
	ErrLock       = errors.New("title lock failed")
)

func (k Kind) String() string {
	switch k {
	case KindProbe:
		return "probe"
	case KindThumbnail:
		return "thumbnail"
	case KindConversion:
		return "conversion"
	case KindChapters:
		return "chapters"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindLock:
		return "lock"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindProbe:
		return ErrProbe
	case KindThumbnail:
		return ErrThumbnail
	case KindConversion:
		return ErrConversion
	case KindChapters:
		return ErrChapters
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	case KindLock:
		return ErrLock
	default:
		return errors.New("acquisition failed")
	}
}

// AcquisitionError is returned for every failed acquisition. It matches its
// kind's sentinel and the underlying cause with errors.Is.
type AcquisitionError struct {
	Kind Kind
	Ref  string
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Kind.sentinel(), e.Ref, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// newError builds an AcquisitionError, reclassifying failures caused by the
// run's context as timeouts or cancellations.
func newError(ctx context.Context, kind Kind, ref string, err error) *AcquisitionError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		kind = KindCancelled
	}
	return &AcquisitionError{Kind: kind, Ref: ref, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not an AcquisitionError.
func KindOf(err error) Kind {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Kind
	}
	return 0
}
