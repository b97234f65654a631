package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data.
const RedactedPlaceholder = "[REDACTED]"

// redactedKeyPrefix is the fixed prefix kept when partially redacting an
// API key. Together with the last four characters it lets operators match
// a log line to a credential without exposing it.
const redactedKeyPrefix = "sk-..."

// sensitivePatterns contains compiled regex patterns for detecting
// sensitive data. Compiled once at package initialization.
var sensitivePatterns = []*regexp.Regexp{
	// OpenAI API keys: sk-... (legacy) or sk-proj-... (project-scoped)
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),
	// Bearer tokens in headers or dumps
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	// Generic secret assignments
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveFieldMarkers are field-name substrings that indicate sensitive
// values regardless of content.
var sensitiveFieldMarkers = []string{
	"OPENAI_API_KEY",
	"API_KEY",
	"APIKEY",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"CREDENTIAL",
}

// RedactSensitiveData scans a string and redacts any detected sensitive
// data. Pure function.
//
// Example:
//
//	RedactSensitiveData("key is sk-abc...") // "key is [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField returns true if the field name indicates sensitive data.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, marker := range sensitiveFieldMarkers {
		if strings.Contains(upperName, marker) {
			return true
		}
	}
	return false
}

// RedactAPIKey partially redacts a bearer credential for log output.
//
// Credentials shorter than 8 characters are replaced entirely; longer ones
// keep only their last 4 characters behind a fixed prefix, e.g.
// "sk-...7890".
func RedactAPIKey(key string) string {
	if len(key) < 8 {
		return RedactedPlaceholder
	}
	return redactedKeyPrefix + key[len(key)-4:]
}
