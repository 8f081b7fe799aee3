package mojang

import "errors"

var (
	// ErrHTTPRequestFailed is returned when an HTTP request to the launcher API fails.
	ErrHTTPRequestFailed = errors.New("failed to send HTTP request")

	// ErrUnexpectedStatus is returned when the launcher API answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrFailedToReadBody is returned when a response body cannot be read.
	ErrFailedToReadBody = errors.New("failed to read response body")

	// ErrFailedToDecode is returned when a response body is not the expected JSON document.
	ErrFailedToDecode = errors.New("failed to decode response")

	// ErrVersionNotFound is returned when the manifest has no version with the requested name.
	ErrVersionNotFound = errors.New("version not found")

	// ErrNoServerDownload is returned when a version does not ship a dedicated server.
	ErrNoServerDownload = errors.New("version has no server download")

	// ErrChecksumMismatch is returned when a downloaded file does not match the published digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrWriteFailed is returned when a downloaded file cannot be written to disk.
	ErrWriteFailed = errors.New("failed to write file")
)
