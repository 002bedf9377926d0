package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrExtraction marks unreadable or unparseable source documents.
	ErrExtraction = errors.New("extraction failed")
	// ErrPersistence marks an unavailable store or a rejected write.
	ErrPersistence = errors.New("persistence failed")
	// ErrResourceExhausted is a scheduling signal from the memory gate, not a hard failure.
	ErrResourceExhausted = errors.New("resource exhausted")
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
