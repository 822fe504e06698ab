package markdown

import (
	"strings"
)

// inlineDestination locates the destination inside an inline tail
// "(<dest> "title")" starting at tail[0] == '('. It returns the byte range of
// the destination token, angle brackets included.
func inlineDestination(tail []byte) (start, end int, ok bool) {
	if len(tail) == 0 || tail[0] != '(' {
		return 0, 0, false
	}

	i := 1
	for i < len(tail) && isSpace(tail[i]) {
		i++
	}
	start = i
	if i >= len(tail) {
		return 0, 0, false
	}

	if tail[i] == '<' {
		for j := i + 1; j < len(tail); j++ {
			switch tail[j] {
			case '\\':
				j++
			case '>':
				return start, j + 1, true
			case '\n':
				return 0, 0, false
			}
		}
		return 0, 0, false
	}

	depth := 0
	for ; i < len(tail); i++ {
		c := tail[i]
		switch {
		case c == '\\' && i+1 < len(tail):
			i++
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return start, i, true
			}
			depth--
		case isSpace(c):
			return start, i, true
		}
	}
	return 0, 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// formatDestination renders url as a link destination, using the angle
// bracket form when the bare form would not parse back to url.
func formatDestination(url string) string {
	if url != "" && !needsAngleBrackets(url) {
		return url
	}
	var b strings.Builder
	b.Grow(len(url) + 2)
	b.WriteByte('<')
	for i := 0; i < len(url); i++ {
		switch c := url[i]; c {
		case '<', '>', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString("%0A")
		case '\r':
			b.WriteString("%0D")
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('>')
	return b.String()
}

func needsAngleBrackets(url string) bool {
	depth := 0
	for i := 0; i < len(url); i++ {
		switch c := url[i]; {
		case c <= ' ' || c == 0x7f || c == '<' || c == '>' || c == '\\':
			return true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return true
			}
		}
	}
	return depth != 0
}

// formatTitle renders a link title in double quotes. title is the raw text
// from the source, so existing backslash escapes are kept.
func formatTitle(title []byte) string {
	var b strings.Builder
	b.Grow(len(title) + 2)
	b.WriteByte('"')
	for i := 0; i < len(title); i++ {
		c := title[i]
		if c == '\\' && i+1 < len(title) {
			b.WriteByte(c)
			b.WriteByte(title[i+1])
			i++
			continue
		}
		if c == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
