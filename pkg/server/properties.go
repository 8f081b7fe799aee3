package server

import (
	"bufio"
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// LoadProperties reads a flat key=value file.
//
// Blank lines and lines starting with '#' or '!' are skipped. Keys are trimmed,
// values lose leading whitespace only, and the usual backslash escapes are decoded.
func LoadProperties(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}

	return parseProperties(data)
}

func parseProperties(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimLeft(strings.TrimSuffix(scanner.Text(), "\r"), " \t\f")
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}

		sep := separatorIndex(line)
		if sep < 0 {
			return nil, fmt.Errorf("%w: line %d has no '=': %q", ErrParse, lineNo, line)
		}

		key, err := unescape(strings.TrimSpace(line[:sep]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrParse, lineNo, err)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: line %d has an empty key", ErrParse, lineNo)
		}
		value, err := unescape(strings.TrimLeft(line[sep+1:], " \t\f"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrParse, lineNo, err)
		}

		props[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return props, nil
}

// MergeProperties applies overrides on top of existing and rewrites the file at path.
//
// With no overrides the file is left untouched and existing is returned as is.
// Otherwise the whole file is rewritten in key order; comments are not kept.
func MergeProperties(path string, existing, overrides map[string]string) (map[string]string, error) {
	if len(overrides) == 0 {
		return existing, nil
	}

	merged := make(map[string]string, len(existing)+len(overrides))
	maps.Copy(merged, existing)
	maps.Copy(merged, overrides)

	if err := os.WriteFile(path, formatProperties(merged), 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %w", ErrIO, path, err)
	}

	return merged, nil
}

func formatProperties(props map[string]string) []byte {
	var buf bytes.Buffer
	for _, key := range slices.Sorted(maps.Keys(props)) {
		buf.WriteString(escape(key))
		buf.WriteByte('=')
		buf.WriteString(escape(props[key]))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// separatorIndex returns the index of the first unescaped '='.
func separatorIndex(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '=':
			return i
		}
	}
	return -1
}

func escape(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '=':
			b.WriteString(`\=`)
		case ':':
			b.WriteString(`\:`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case ' ':
			// A leading space would be trimmed on load.
			if i == 0 {
				b.WriteString(`\ `)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			break
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("truncated unicode escape in %q", s)
			}
			code, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape in %q: %w", s, err)
			}
			b.WriteRune(rune(code))
			i += 4
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}
