package nlu

import "errors"

var (
	// ErrMalformedInput is returned when raw text is not valid UTF-8.
	ErrMalformedInput = errors.New("nlu: malformed input text")

	// ErrModelUnavailable covers every failure of the model collaborator:
	// missing client, timeout, open breaker or transport error.
	ErrModelUnavailable = errors.New("nlu: model collaborator unavailable")

	// ErrUnknownLabel is returned when the model only answered with labels
	// outside the configured intents.
	ErrUnknownLabel = errors.New("nlu: model returned no known label")

	ErrExtractionFailed = errors.New("nlu: entity extraction failed")
)
