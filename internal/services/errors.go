package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{
	ErrConfiguration,
	ErrValidation,
	ErrInvalidState,
	ErrNotFound,
	ErrTimeout,
	ErrExternalTool,
	ErrTransient,
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the short name of the first marker carried by err, or "unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return kindName(marker)
		}
	}
	return "unknown"
}

// IsRejection reports whether err was raised before any work ran: bad
// configuration, bad input or a call against the wrong state. Rejections are
// surfaced to the caller and never counted as operation attempts.
func IsRejection(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotFound)
}

func kindName(marker error) string {
	switch marker {
	case ErrConfiguration:
		return "configuration"
	case ErrValidation:
		return "validation"
	case ErrInvalidState:
		return "invalid_state"
	case ErrNotFound:
		return "not_found"
	case ErrTimeout:
		return "timeout"
	case ErrExternalTool:
		return "external"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
