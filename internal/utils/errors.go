package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTaskNotFound returns an error for when a task id does not exist.
func ErrTaskNotFound(id int64) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %d", id),
		Suggestion: "Use 'kairon list' to see task ids",
	}
}

// ErrInterestNotFound returns an error for when an interest id does not exist.
func ErrInterestNotFound(id int64) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("interest not found: %d", id),
		Suggestion: "Use 'kairon interest list' to see interest ids",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use YYYY-MM-DD, YYYY-MM-DD HH:MM, today, tomorrow or +Nd",
	}
}

// ErrInvalidChoice returns an error for a value outside an enumerated set.
func ErrInvalidChoice(field, value string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid %s: %s", field, value),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrConfirmationDeclined is returned when a destructive action was not confirmed.
func ErrConfirmationDeclined(action string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%s cancelled", action),
		Suggestion: "Pass -y (--no-prompt) to confirm without a prompt",
	}
}

// ErrStorageUnavailable returns an error when the local database cannot be used.
func ErrStorageUnavailable(path string, err error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("cannot open database %s: %w", path, err),
		Suggestion: "Check the database path in your config file or pass --db",
	}
}

// ErrWeatherKeyMissing is returned when no OpenWeatherMap API key is configured.
func ErrWeatherKeyMissing() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("weather API key not configured"),
		Suggestion: "Set KAIRON_WEATHER_API_KEY or run 'kairon credentials set weather'",
	}
}
