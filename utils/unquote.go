package utils

import (
	"strconv"
	"strings"
)

// Unquote a " or ' delimited string literal. Terms are plain byte
// strings so escapes are decoded byte by byte: \xHH yields the raw
// byte rather than a utf8 encoded code point. Unknown escapes yield
// the escaped character and a truncated escape at the end is
// dropped. Strings not starting with a quote are returned as is.
func Unquote(s string) string {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return s
	}

	in := s[1 : len(s)-1]
	if strings.IndexByte(in, '\\') < 0 {
		return in
	}

	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		c := in[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}

		if i+1 >= len(in) {
			break
		}
		i++

		switch in[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'x', 'X':
			if i+2 >= len(in) {
				return string(out)
			}
			value, ok := hexByte(in[i+1], in[i+2])
			if !ok {
				// Copied verbatim.
				out = append(out, '\\', in[i])
				continue
			}
			out = append(out, value)
			i += 2
		default:
			out = append(out, in[i])
		}
	}
	return string(out)
}

// Unquote a ` delimited identifier. Field names with spaces or dots
// are written this way.
func UnquoteIdent(s string) string {
	if len(s) < 2 || s[0] != '`' || s[len(s)-1] != '`' {
		return s
	}

	in := s[1 : len(s)-1]
	var out strings.Builder
	for in != "" {
		value, _, tail, err := strconv.UnquoteChar(in, '`')
		if err != nil {
			return in
		}
		out.WriteRune(value)
		in = tail
	}
	return out.String()
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok := hexDigit(hi)
	if !ok {
		return 0, false
	}
	l, ok := hexDigit(lo)
	if !ok {
		return 0, false
	}
	return h<<4 | l, true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
