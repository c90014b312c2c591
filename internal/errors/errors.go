package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents different types of errors that can occur
type ErrorCode int

const (
	// Configuration errors
	ErrorConfigNotFound ErrorCode = iota + 1000
	ErrorConfigInvalid
	ErrorConfigParsingFailed

	// File I/O errors
	ErrorFileNotFound
	ErrorFileReadFailed
	ErrorFileWriteFailed
	ErrorFileEmpty
	ErrorFileInvalidFormat

	// Port specification errors
	ErrorPortSpecInvalid
	ErrorPortOutOfRange
	ErrorPortRangeInverted
	ErrorPortSetEmpty

	// Network/Connection errors
	ErrorConnectionFailed
	ErrorConnectionTimeout
	ErrorConnectionRefused
	ErrorDNSResolutionFailed
	ErrorTLSHandshakeFailed
	ErrorUpstreamProxyFailed

	// HTTP errors
	ErrorHTTPRequestFailed
	ErrorHTTPInvalidResponse
	ErrorHTTPUnexpectedStatus

	// Datasource errors
	ErrorDatasourceCreateFailed
	ErrorDatasourceIDMissing
	ErrorDatasourceProbeFailed
	ErrorDatasourceDeleteFailed

	// System errors
	ErrorSystemTimeout
	ErrorSystemShutdown
)

// ScanError represents a structured error with context and error codes
type ScanError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	Target    string                 `json:"target,omitempty"`
	Port      int                    `json:"port,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"` // Original error, not serialized
}

func (e *ScanError) Error() string {
	var parts []string

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("operation=%s", e.Operation))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	if e.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", e.Port))
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("url=%s", e.URL))
	}

	context := ""
	if len(parts) > 0 {
		context = fmt.Sprintf(" [%s]", strings.Join(parts, ", "))
	}

	result := fmt.Sprintf("[%d] %s%s", e.Code, e.Message, context)

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying error for error unwrapping
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is()
func (e *ScanError) Is(target error) bool {
	if se, ok := target.(*ScanError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithDetail adds a detail to the error
func (e *ScanError) WithDetail(key string, value interface{}) *ScanError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithTarget adds target host context to the error
func (e *ScanError) WithTarget(target string) *ScanError {
	e.Target = target
	return e
}

// WithPort adds port context to the error
func (e *ScanError) WithPort(port int) *ScanError {
	e.Port = port
	return e
}

// WithURL adds URL context to the error
func (e *ScanError) WithURL(url string) *ScanError {
	e.URL = url
	return e
}

// Constructor functions for common error types

// NewConfigError creates a configuration-related error
func NewConfigError(code ErrorCode, message string, cause error) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "config",
		Cause:     cause,
	}
}

// NewFileError creates a file I/O related error
func NewFileError(code ErrorCode, message string, filename string, cause error) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "file",
		Cause:     cause,
		Details:   map[string]interface{}{"filename": filename},
	}
}

// NewPortSpecError creates a port specification parsing error
func NewPortSpecError(code ErrorCode, message string, spec string) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "ports",
		Details:   map[string]interface{}{"spec": spec},
	}
}

// NewNetworkError creates a network-related error
func NewNetworkError(code ErrorCode, message string, url string, cause error) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "network",
		URL:       url,
		Cause:     cause,
	}
}

// NewHTTPError creates an HTTP-related error
func NewHTTPError(code ErrorCode, message string, url string, cause error) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "http",
		URL:       url,
		Cause:     cause,
	}
}

// NewDatasourceError creates a datasource lifecycle error
func NewDatasourceError(code ErrorCode, message string, port int, cause error) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "datasource",
		Port:      port,
		Cause:     cause,
	}
}

// NewSystemError creates a system-level error
func NewSystemError(code ErrorCode, message string, cause error) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Operation: "system",
		Cause:     cause,
	}
}

// Error category checking functions

// IsConfigError checks if the error is configuration-related
func IsConfigError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorConfigNotFound && se.Code <= ErrorConfigParsingFailed
	}
	return false
}

// IsFileError checks if the error is file I/O related
func IsFileError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorFileNotFound && se.Code <= ErrorFileInvalidFormat
	}
	return false
}

// IsPortSpecError checks if the error is port specification related
func IsPortSpecError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorPortSpecInvalid && se.Code <= ErrorPortSetEmpty
	}
	return false
}

// IsNetworkError checks if the error is network-related
func IsNetworkError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorConnectionFailed && se.Code <= ErrorUpstreamProxyFailed
	}
	return false
}

// IsHTTPError checks if the error is HTTP-related
func IsHTTPError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorHTTPRequestFailed && se.Code <= ErrorHTTPUnexpectedStatus
	}
	return false
}

// IsDatasourceError checks if the error is datasource lifecycle related
func IsDatasourceError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorDatasourceCreateFailed && se.Code <= ErrorDatasourceDeleteFailed
	}
	return false
}

// IsSystemError checks if the error is system-related
func IsSystemError(err error) bool {
	if se, ok := err.(*ScanError); ok {
		return se.Code >= ErrorSystemTimeout && se.Code <= ErrorSystemShutdown
	}
	return false
}

// IsCritical determines if an error is critical and should stop processing
func IsCritical(err error) bool {
	if se, ok := err.(*ScanError); ok {
		switch se.Code {
		case ErrorConfigNotFound,
			ErrorConfigInvalid,
			ErrorFileNotFound,
			ErrorPortSetEmpty,
			ErrorSystemShutdown:
			return true
		}
	}
	return false
}

// GetErrorCategory returns a human-readable category for the error
func GetErrorCategory(err error) string {
	if se, ok := err.(*ScanError); ok {
		switch {
		case IsConfigError(err):
			return "Configuration"
		case IsFileError(err):
			return "File I/O"
		case IsPortSpecError(err):
			return "Port Specification"
		case IsNetworkError(err):
			return "Network"
		case IsHTTPError(err):
			return "HTTP"
		case IsDatasourceError(err):
			return "Datasource"
		case IsSystemError(err):
			return "System"
		default:
			return fmt.Sprintf("Unknown (%d)", se.Code)
		}
	}
	return "Generic"
}
