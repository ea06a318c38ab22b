package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

func asFolio(err error) *FolioError {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	fe := asFolio(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", fe.Message)
	if fe.Cause != nil && fe.Cause.Error() != fe.Message {
		fmt.Fprintf(&sb, "  Cause: %s\n", fe.Cause)
	}
	if fe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", fe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", fe.Code)
	return sb.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error for machine consumers.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	fe := asFolio(err)

	je := jsonError{
		Code:       fe.Code,
		Message:    fe.Message,
		Category:   string(fe.Category),
		Severity:   string(fe.Severity),
		Details:    fe.Details,
		Suggestion: fe.Suggestion,
		Retryable:  fe.Retryable,
	}
	if fe.Cause != nil {
		je.Cause = fe.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog flattens an error into slog-friendly attributes.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}
	var fe *FolioError
	if !errors.As(err, &fe) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", fe.Code,
		"error", fe.Message,
		"severity", string(fe.Severity),
	}
	if fe.Cause != nil {
		attrs = append(attrs, "cause", fe.Cause.Error())
	}
	for k, v := range fe.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
