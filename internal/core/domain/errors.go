package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrIndexUnavailable means the chunk store could not be reached at all.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrIndexNotFound means the store answered but holds no collection yet.
	ErrIndexNotFound = errors.New("index not found")

	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrRerankUnavailable     = errors.New("rerank unavailable")
	ErrCacheMiss             = errors.New("cache miss")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
