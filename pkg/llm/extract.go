package llm

import (
	"regexp"
	"strings"
)

var (
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	sqlFencePattern   = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
)

// ExtractSQL pulls the SQL statement out of a raw model response: reasoning
// blocks are dropped, a fenced code block wins over surrounding prose, and
// the result is trimmed. Returns "" when no SQL-looking text remains.
func ExtractSQL(response string) string {
	s := thinkBlockPattern.ReplaceAllString(response, "")

	if m := sqlFencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	s = strings.TrimSpace(s)

	// Models sometimes prefix the statement with prose; keep from the first
	// SELECT/WITH onward.
	upper := strings.ToUpper(s)
	idx := -1
	for _, kw := range []string{"SELECT", "WITH"} {
		if i := strings.Index(upper, kw); i >= 0 && (idx == -1 || i < idx) {
			idx = i
		}
	}
	if idx > 0 {
		s = s[idx:]
	} else if idx == -1 {
		return ""
	}

	return strings.TrimSpace(s)
}
