package domain

import (
	"fmt"
)

// AuthError is returned when a webhook request carries the wrong secret.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "unauthorized: " + e.Reason
}

// FetchError reports that reference data could not be loaded from its source.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch reference data from %s: status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("fetch reference data from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FileResolutionError reports that the chat platform returned no path for a file id.
type FileResolutionError struct {
	FileID string
	Err    error
}

func (e *FileResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve file %s: %v", e.FileID, e.Err)
	}
	return fmt.Sprintf("resolve file %s: file path not found", e.FileID)
}

func (e *FileResolutionError) Unwrap() error { return e.Err }

// DownloadError reports a failed attachment download.
type DownloadError struct {
	FilePath   string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.FilePath, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.FilePath, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError reports that the language model call itself failed.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseError reports input that could not be decoded into the expected shape.
// Raw keeps the offending payload for display or logging.
type ParseError struct {
	What string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SinkForwardError reports a failed forward of an approved transaction.
type SinkForwardError struct {
	Sink       string
	StatusCode int
	Err        error
}

func (e *SinkForwardError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("forward to %s: status %d", e.Sink, e.StatusCode)
	}
	return fmt.Sprintf("forward to %s: %v", e.Sink, e.Err)
}

func (e *SinkForwardError) Unwrap() error { return e.Err }
