package repositorycache

import (
	"strings"
	"unicode"
)

// toSnake turns a reflected type name into a snake_case endpoint segment.
// Generic arguments are dropped and any other punctuation becomes a single
// underscore, so the result never contains the key separator or a slash.
func toSnake(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}

	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	pendingSep := false
	flush := func() {
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					pendingSep = true
				}
			}
			flush()
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				pendingSep = true
			}
			flush()
			b.WriteRune(r)
		case unicode.IsLower(r):
			flush()
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}

	return b.String()
}
