package errors

import (
	"context"
	"errors"
	"net/http"
)

// FromStatus maps a non-2xx backend response to an AppError.
// message is the backend's "message" field; when empty a generic text is used.
func FromStatus(status int, message string) *AppError {
	code := codeForStatus(status)
	text := message
	if text == "" {
		text = defaultMessage(code)
	}
	return &AppError{Code: code, Message: text, Status: status, Detail: message}
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusConflict:
		return ErrCodeConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrCodeValidation
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrCodeTimeout
	default:
		return ErrCodeTransport
	}
}

func defaultMessage(code ErrorCode) string {
	switch code {
	case ErrCodeUnauthorized:
		return "Authentication required"
	case ErrCodeForbidden:
		return "Access denied"
	case ErrCodeNotFound:
		return "Resource not found"
	case ErrCodeConflict:
		return "Resource already exists"
	case ErrCodeValidation:
		return "Invalid request"
	case ErrCodeTimeout:
		return "Request timed out. Please try again."
	default:
		return "Backend unavailable. Please try again."
	}
}

// MapTransportError classifies an error returned by http.Client.Do.
func MapTransportError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: defaultMessage(ErrCodeTimeout), Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	default:
		return &AppError{Code: ErrCodeTransport, Message: defaultMessage(ErrCodeTransport), Cause: err}
	}
}
