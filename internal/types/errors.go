package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout            = errors.New("render timed out")
	ErrMissingIndicator   = errors.New("total-pages indicator not found")
	ErrShortRow           = errors.New("row has fewer cells than the schema expects")
	ErrEmptyPage          = errors.New("page has no data rows")
	ErrAlreadyArchived    = errors.New("page already archived")
	ErrInvalidSeasonRange = errors.New("invalid season range")
)

// FetchError wraps errors that occur while rendering a page.
type FetchError struct {
	URL       string
	Err       error
	Retryable bool
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// PaginationError means the page count of a season could not be determined.
type PaginationError struct {
	Season int
	URL    string
	Err    error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination error for season %d (%s): %v", e.Season, e.URL, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while extracting table rows.
// Row is the zero-based row index within the page, Column the schema
// column name, when known.
type ParseError struct {
	Season int
	Page   int
	Row    int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("parse error for season %d page %d (row=%d column=%q): %v",
			e.Season, e.Page, e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error for season %d page %d (row=%d): %v", e.Season, e.Page, e.Row, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while persisting to a sink.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}
