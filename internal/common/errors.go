package common

import "errors"

// Error taxonomy shared by adapters, pollers and the stream. Callers wrap these
// with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrNetwork is a failed request or a non-success HTTP status.
	ErrNetwork = errors.New("network error")

	// ErrInvalidShape is a response that lacks the fields an adapter needs.
	ErrInvalidShape = errors.New("invalid response shape")

	// ErrStream is a push connection failure.
	ErrStream = errors.New("stream error")
)
