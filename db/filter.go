package db

import (
	"fmt"
	"strings"
	"unicode"
)

// FilterTerm is one `field = "value"` clause of a filter expression.
type FilterTerm struct {
	Field string
	Value string
}

// ParseFilter parses a filter expression of the record-query grammar:
// `field = "value"` terms joined by `&&`. Values are double-quoted with
// backslash escapes. An empty expression yields no terms.
func ParseFilter(expr string) ([]FilterTerm, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var terms []FilterTerm
	rest := expr
	for {
		term, remaining, err := parseTerm(rest)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)

		remaining = strings.TrimLeftFunc(remaining, unicode.IsSpace)
		if remaining == "" {
			return terms, nil
		}
		if !strings.HasPrefix(remaining, "&&") {
			return nil, fmt.Errorf("expected && near %q", remaining)
		}
		rest = remaining[2:]
	}
}

func parseTerm(s string) (FilterTerm, string, error) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	// field identifier
	i := 0
	for i < len(s) && (isIdentRune(rune(s[i]))) {
		i++
	}
	if i == 0 {
		return FilterTerm{}, "", fmt.Errorf("expected field name near %q", s)
	}
	field := s[:i]
	s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)

	if !strings.HasPrefix(s, "=") {
		return FilterTerm{}, "", fmt.Errorf("expected = after field %q", field)
	}
	s = strings.TrimLeftFunc(s[1:], unicode.IsSpace)

	if !strings.HasPrefix(s, `"`) {
		return FilterTerm{}, "", fmt.Errorf("expected quoted value for field %q", field)
	}
	s = s[1:]

	var value strings.Builder
	for i = 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return FilterTerm{}, "", fmt.Errorf("dangling escape in value for field %q", field)
			}
			i++
			value.WriteByte(s[i])
		case '"':
			return FilterTerm{Field: field, Value: value.String()}, s[i+1:], nil
		default:
			value.WriteByte(s[i])
		}
	}
	return FilterTerm{}, "", fmt.Errorf("unterminated value for field %q", field)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
