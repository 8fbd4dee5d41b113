package tree

import (
	"strconv"
	"strings"
	"unicode"
)

// isSpace matches the ECMAScript \s class: the WhiteSpace and
// LineTerminator code points. It differs from unicode.IsSpace by including
// U+FEFF and excluding U+0085.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// Slug derives a node id from its name and depth: the lowercased name with
// every whitespace run (as matched by a JavaScript \s+) collapsed to a
// single hyphen, then "-<level>".
//
//	Slug("Child A", 1) == "child-a-1"
func Slug(name string, level int) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	inSpace := false
	for _, r := range strings.ToLower(name) {
		if isSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	b.WriteByte('-')
	b.WriteString(strconv.Itoa(level))
	return b.String()
}
