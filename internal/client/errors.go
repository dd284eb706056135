package client

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrFetchFailed matches every terminal fetch failure via errors.Is.
var ErrFetchFailed = errors.New("fetch failed")

const snippetLength = 500

// FetchExhaustedError is returned once every attempt of the retry policy failed.
type FetchExhaustedError struct {
	URL        string
	Attempts   int
	LastStatus int    // 0 when the last attempt failed below HTTP
	Snippet    string // Whitespace-collapsed head of the last response body
	Err        error  // Transport error of the last attempt, if any
}

func (e *FetchExhaustedError) Error() string {
	if e.LastStatus == 0 && e.Err != nil {
		return fmt.Sprintf("fetch failed after %d attempts: %s: %v", e.Attempts, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch failed after %d attempts: %s (last status %d): %s", e.Attempts, e.URL, e.LastStatus, e.Snippet)
}

func (e *FetchExhaustedError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}

// StatusError is a non-retryable HTTP status under the active policy.
type StatusError struct {
	URL     string
	Status  int
	Snippet string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d on %s: %s", e.Status, e.URL, e.Snippet)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Snippet collapses whitespace in body and cuts it to n runes.
func Snippet(body string, n int) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(collapsed) <= n {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:n])
}
