package vault

import "strings"

// splitLines splits content keeping each line's terminator so a single line
// can be replaced without touching anything else.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// body strips the terminator ("\n" or "\r\n").
func body(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// terminator returns what body stripped.
func terminator(line string) string {
	return line[len(body(line)):]
}

func indentWidth(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
