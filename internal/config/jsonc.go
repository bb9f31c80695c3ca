package config

import (
	"fmt"
	"strings"
)

// normalizeJSONC turns JSONC into strict JSON. Comments become spaces
// (newlines kept, so decoder offsets still map to source lines) and
// trailing commas before '}' or ']' are dropped.
func normalizeJSONC(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			inString = true
			out.WriteByte(ch)
		case ch == '/' && i+1 < len(content) && content[i+1] == '/':
			end := strings.IndexByte(content[i:], '\n')
			if end < 0 {
				end = len(content) - i
			}
			out.WriteString(strings.Repeat(" ", end))
			i += end - 1
		case ch == '/' && i+1 < len(content) && content[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				line, _ := offsetToLineCol(content, int64(i+1))
				return "", fmt.Errorf("line %d: unterminated block comment in JSONC", line)
			}
			blankComment(&out, content[i:i+2+end+2])
			i += 2 + end + 1
		case ch == ',':
			if next := nextSignificant(content, i+1); next < len(content) && (content[next] == '}' || content[next] == ']') {
				out.WriteByte(' ')
			} else {
				out.WriteByte(ch)
			}
		default:
			out.WriteByte(ch)
		}
	}

	return out.String(), nil
}

func blankComment(out *strings.Builder, comment string) {
	for i := 0; i < len(comment); i++ {
		if comment[i] == '\n' {
			out.WriteByte('\n')
		} else {
			out.WriteByte(' ')
		}
	}
}

// nextSignificant returns the index of the next byte that is neither JSON
// whitespace nor part of a comment, or len(content).
func nextSignificant(content string, i int) int {
	for i < len(content) {
		switch {
		case isJSONWhitespace(content[i]):
			i++
		case strings.HasPrefix(content[i:], "//"):
			end := strings.IndexByte(content[i:], '\n')
			if end < 0 {
				return len(content)
			}
			i += end + 1
		case strings.HasPrefix(content[i:], "/*"):
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return len(content)
			}
			i += 2 + end + 2
		default:
			return i
		}
	}
	return i
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
