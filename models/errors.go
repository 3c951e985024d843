package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeCaptchaSubmit      = "CAPTCHA_SUBMIT_FAILED"
	ErrCodeCaptchaTimeout     = "CAPTCHA_TIMEOUT"
	ErrCodeCaptchaSolve       = "CAPTCHA_SOLVE_FAILED"
	ErrCodeNavigationTimeout  = "NAVIGATION_TIMEOUT"
	ErrCodeResultPageNotFound = "RESULT_PAGE_NOT_FOUND"
	ErrCodeBrowserCrash       = "BROWSER_CRASH"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConsultError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ConsultError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ConsultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConsultError) Unwrap() error {
	return e.Err
}

// NewConsultError creates a new ConsultError.
func NewConsultError(code, message string, err error) *ConsultError {
	return &ConsultError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ConsultError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
