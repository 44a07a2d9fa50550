package logger

import "regexp"

// sensitivePatterns match credentials that must never reach log output.
// The weather API carries its key as a query parameter, so URLs in error
// messages are the main source.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token|password)=)([^&\s"]+)`),
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|secret|passw(?:or)?d)[\s:=]+)([^;,\s"]{5,})`),
	regexp.MustCompile(`(?i)(sftp://[^:/\s]+:|ftp://[^:/\s]+:)([^@\s]+)`),
}

// RedactSensitiveData replaces credentials in input with "[REDACTED]".
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitivePatterns {
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}
