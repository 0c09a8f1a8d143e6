package props

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parse errors.
var (
	ErrNotAList  = errors.New("value is not a bracketed list")
	ErrBadNumber = errors.New("invalid number")
)

// ParseUint32 parses a decimal unsigned 32-bit integer. Surrounding
// whitespace is ignored.
func ParseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return uint32(n), nil
}

// ParseUint32List parses a bracketed, whitespace-separated list of unsigned
// integers such as "[ 44100 48000 ]". The list is all-or-nothing: if the
// framing is malformed or any element fails to parse, no values are returned.
// An empty list "[]" is valid.
func ParseUint32List(s string) ([]uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: %q", ErrNotAList, s)
	}
	inner := s[1 : len(s)-1]
	if strings.ContainsAny(inner, "[]") {
		return nil, fmt.Errorf("%w: %q", ErrNotAList, s)
	}

	fields := strings.Fields(inner)
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		n, err := ParseUint32(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// FormatUint32List is the inverse of ParseUint32List.
func FormatUint32List(vals []uint32) string {
	var b strings.Builder
	b.WriteString("[")
	for _, v := range vals {
		b.WriteString(" ")
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	b.WriteString(" ]")
	return b.String()
}
