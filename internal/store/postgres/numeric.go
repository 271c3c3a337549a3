package postgres

import (
	"fmt"
	"math/big"
)

// Amounts travel as decimal text: written through a ::text::numeric cast and
// read back with ::text.

func numeric(n *big.Int) any {
	if n == nil {
		return nil
	}
	return n.String()
}

func parseNumeric(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: invalid numeric %q", s)
	}
	return n, nil
}

func parseNullNumeric(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	return parseNumeric(*s)
}

// nullString converts an optional id into a nullable text parameter.
func nullString[T ~string](p *T) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func fromNullString[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func toStrings[T ~string](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func fromStrings[T ~string](ss []string) []T {
	out := make([]T, len(ss))
	for i, s := range ss {
		out[i] = T(s)
	}
	return out
}
