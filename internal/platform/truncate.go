package platform

import "unicode/utf8"

// Truncate cuts content to at most limit characters. The second result is true
// when anything was removed.
func Truncate(content string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content, false
	}
	n := 0
	for i := range content {
		if n == limit {
			return content[:i], true
		}
		n++
	}
	return content, false
}

func Length(content string) int {
	return utf8.RuneCountInString(content)
}
