package xmldoc

import (
	"fmt"
	"strconv"
	"strings"
)

// Floats parses a space-separated string into exactly n floats.
func Floats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d space-separated values, got %d: %q", n, len(parts), s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in %q", p, s)
		}
		out[i] = v
	}
	return out, nil
}

// Float parses a single float.
func Float(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
