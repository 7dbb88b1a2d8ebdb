package parser

import (
	"fmt"
	"regexp"
	"strconv"
)

// Sentinel is the token the stats site renders when a value does not apply.
const Sentinel = "--"

var (
	intPattern   = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
)

// ParseInt decodes a trimmed cell into an integer. The sentinel decodes
// to nil. Grouping separators and any other non-digit text are errors.
func ParseInt(cell string) (*int, error) {
	if cell == Sentinel {
		return nil, nil
	}
	if !intPattern.MatchString(cell) {
		return nil, fmt.Errorf("invalid integer %q", cell)
	}
	v, err := strconv.Atoi(cell)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", cell, err)
	}
	return &v, nil
}

// ParseFloat decodes a trimmed cell into a real number with at most one
// decimal point. The sentinel decodes to nil. Exponents, NaN and Inf are
// rejected since the site never renders them.
func ParseFloat(cell string) (*float64, error) {
	if cell == Sentinel {
		return nil, nil
	}
	if !floatPattern.MatchString(cell) {
		return nil, fmt.Errorf("invalid real %q", cell)
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid real %q: %w", cell, err)
	}
	return &v, nil
}
