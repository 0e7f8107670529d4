// Package redact scrubs sensitive material from strings before they
// reach logs or error responses: signed tokens, connection strings,
// credential-looking values, and filesystem paths.
package redact

import "regexp"

// RedactionPlaceholder replaces any matched sensitive fragment.
const RedactionPlaceholder = "[REDACTED]"

var patterns = []*regexp.Regexp{
	// Signed tokens (three-part base64url JWT)
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),

	// Database connection strings with embedded credentials
	regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@[^\s]+`),

	// Credential-looking key/value pairs
	regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token)[=:\s]['"]?[^'"&\s]{3,}`),

	// Absolute filesystem paths, e.g. upload-directory locations
	regexp.MustCompile(`(/[\w.-]+){2,}`),
}

// String returns s with every sensitive fragment replaced.
func String(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactionPlaceholder)
	}
	return s
}

// Error returns the redacted message of err, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
