package sanitizer

import (
	"html"
	"regexp"
	"strings"
)

// Sanitizer cleans probe responses before they reach reports or the
// terminal. Bodies come back from arbitrary internal services through the
// dashboard proxy and must be treated as hostile.
type Sanitizer struct {
	allowHTML bool
	maxLength int
}

// Config represents sanitizer configuration
type Config struct {
	AllowHTML bool // Whether to allow HTML tags (default: false)
	MaxLength int  // Maximum length for string fields (default: 1000)
}

// NewSanitizer creates a new sanitizer with the given configuration
func NewSanitizer(config Config) *Sanitizer {
	if config.MaxLength == 0 {
		config.MaxLength = 1000
	}
	return &Sanitizer{
		allowHTML: config.AllowHTML,
		maxLength: config.MaxLength,
	}
}

// DefaultSanitizer returns a sanitizer with secure defaults
func DefaultSanitizer() *Sanitizer {
	return NewSanitizer(Config{
		AllowHTML: false,
		MaxLength: 1000,
	})
}

var (
	// ansiEscapePattern matches CSI sequences. A banner that recolors or
	// clears the operator's terminal is the classic hostile-scan trick.
	ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

	// controlPattern strips the remaining non-printable bytes (keeps \t and \n
	// for the whitespace pass)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// Active content in probe bodies, for the rare allow-HTML configuration.
	// Probe excerpts are short, so a tag split across the 200-byte cut may
	// survive as text; the default escape path covers that case.
	activeContentPattern = regexp.MustCompile(`(?i)<(script|iframe|object|embed)\b[^>]*>(?:.*?</(?:script|iframe|object|embed)\s*>)?`)
	eventHandlerPattern  = regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|blur|submit)\s*=`)
	scriptSchemePattern  = regexp.MustCompile(`(?i)\b(javascript|vbscript|data):`)

	// Transport errors can embed local file paths
	windowsPathPattern = regexp.MustCompile(`[A-Za-z]:\\[\w\\.-]+`)
	unixPathPattern    = regexp.MustCompile(`/[\w/.-]+/[\w.-]+`)
)

// SanitizeString neutralizes terminal escapes, control bytes and markup in
// untrusted text, then collapses whitespace
func (s *Sanitizer) SanitizeString(input string) string {
	if input == "" {
		return input
	}

	if len(input) > s.maxLength {
		input = input[:s.maxLength] + "..."
	}

	input = ansiEscapePattern.ReplaceAllString(input, "")
	input = controlPattern.ReplaceAllString(input, "")

	if s.allowHTML {
		input = activeContentPattern.ReplaceAllString(input, "[FILTERED]")
		input = eventHandlerPattern.ReplaceAllString(input, "[FILTERED]")
		input = scriptSchemePattern.ReplaceAllString(input, "[FILTERED]")
	} else {
		input = html.EscapeString(input)
	}

	return strings.Join(strings.Fields(input), " ")
}

// SanitizeResponse cleans a probe response excerpt. Terminal escape
// sequences and script fragments in service banners must not survive into
// report files.
func (s *Sanitizer) SanitizeResponse(input string) string {
	return s.SanitizeString(input)
}

// SanitizeError sanitizes error messages while preserving useful information
func (s *Sanitizer) SanitizeError(input string) string {
	if input == "" {
		return input
	}

	sanitized := s.SanitizeString(input)
	sanitized = windowsPathPattern.ReplaceAllString(sanitized, "[PATH]")
	sanitized = unixPathPattern.ReplaceAllString(sanitized, "[PATH]")

	return sanitized
}

// ContainsPotentialXSS checks if a string contains potential XSS patterns
func ContainsPotentialXSS(input string) bool {
	return activeContentPattern.MatchString(input) ||
		eventHandlerPattern.MatchString(input) ||
		scriptSchemePattern.MatchString(input)
}
