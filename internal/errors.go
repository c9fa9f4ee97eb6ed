package internal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredential is matched by API errors caused by a rejected API key
	ErrInvalidCredential = errors.New("invalid or expired API key")
	// ErrMissingCredential is returned before any network call when no API key is configured
	ErrMissingCredential = errors.New("API key is required")
	// ErrRequestInFlight is returned when a session already has an outstanding question
	ErrRequestInFlight = errors.New("a request is already in progress for this session")
	// ErrSessionNotFound is returned when operating on a session the directory does not know
	ErrSessionNotFound = errors.New("session not found")
	// ErrMessageNotFound is returned when a message id is not in the active transcript
	ErrMessageNotFound = errors.New("message not found")
)

// StorageError represents errors accessing local storage files
type StorageError struct {
	Path string
	Op   string // "open", "read", "write", "migrate"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// APIError represents a failed call to a remote service
type APIError struct {
	Op         string // "ask", "list_sessions", "history", ...
	StatusCode int    // 0 for transport failures
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports credential rejections as ErrInvalidCredential
func (e *APIError) Is(target error) bool {
	return target == ErrInvalidCredential &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// ValidationError represents rejected local input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DirectoryError is the directory-scoped error channel for list/create/delete/history failures
type DirectoryError struct {
	Op        string // "list", "create", "delete", "history"
	SessionID string
	Err       error
}

func (e *DirectoryError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("directory error [%s] %s: %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("directory error [%s]: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// userMessage returns the human-readable text for an error shown in a transcript
func userMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
