package genai

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey means the generation service credential is absent from
	// the configuration; the client cannot be constructed without it.
	ErrMissingAPIKey = errors.New("genai: api key is not configured")

	// ErrEmptyCompletion means the service answered but produced no content.
	ErrEmptyCompletion = errors.New("genai: service returned an empty completion")

	// ErrNoIdeas means parsing succeeded but zero ideas survived mapping.
	ErrNoIdeas = errors.New("genai: no ideas recovered from model output")

	// ErrEmptyPrompt means the resolved prompt text was empty after extraction.
	ErrEmptyPrompt = errors.New("genai: prompt text is empty after extraction")
)

// ServiceError reports a transport-level failure of the generation service.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("genai: service request failed: %v", e.Err)
	}
	return fmt.Sprintf("genai: service returned status %d: %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ParseError reports that the model output could not be recognized after all
// fallback stages.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("genai: parse failed: %s", e.Reason)
}
