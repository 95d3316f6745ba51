package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrInvalidDurationFormat is returned for anything other than <digits>{d,h,m,s}
var ErrInvalidDurationFormat = errors.New("invalid duration format")

// ParseDuration converts "Nd", "Nh", "Nm" or "Ns" to a duration
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidDurationFormat)
	}

	magnitude := s[:len(s)-1]
	for _, r := range magnitude {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q: %w", s, ErrInvalidDurationFormat)
		}
	}

	value, err := strconv.ParseInt(magnitude, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidDurationFormat)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 'd':
		unit = 24 * time.Hour
	case 'h':
		unit = time.Hour
	case 'm':
		unit = time.Minute
	case 's':
		unit = time.Second
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidDurationFormat)
	}

	if value > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%q overflows: %w", s, ErrInvalidDurationFormat)
	}

	return time.Duration(value) * unit, nil
}
