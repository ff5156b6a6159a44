package assistant

import "regexp"

var (
	reBearer = regexp.MustCompile(`(?i)\b(bearer)\s+([A-Za-z0-9_\-\.=]{12,})`)
	reSK     = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{12,})\b`)
)

// RedactText masks credential-looking substrings before text reaches a log.
func RedactText(s string) string {
	if s == "" {
		return s
	}
	s = reBearer.ReplaceAllString(s, "$1 [REDACTED]")
	return reSK.ReplaceAllString(s, "[REDACTED]")
}
