package pipe

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// readResponse accumulates lines until the first blank line that follows
// buffered content. Blank lines before any content are dropped.
func readResponse(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			b.WriteString(normalizeLineEnding(line))
			if errors.Is(err, io.EOF) {
				return b.String(), io.ErrUnexpectedEOF
			}
			return b.String(), err
		}

		if isBlankLine(line) {
			if b.Len() > 0 {
				return b.String(), nil
			}
			continue
		}
		b.WriteString(normalizeLineEnding(line))
	}
}

func isBlankLine(line string) bool {
	return strings.TrimRight(line, "\r\n") == ""
}

func normalizeLineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2] + "\n"
	}
	return line
}
