package cli

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosuda/vibetodo/internal/domain"
)

// timeInputPattern matches "1.5h", "2h30m", "2 h 30 m" and "45m".
var timeInputPattern = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)\s*h)?\s*(?:(\d+)\s*m)?$`) //nolint:gochecknoglobals // compiled once

// ParseTimeInput converts a duration typed by the user into whole minutes.
// A bare integer is minutes; hours may be fractional; units are
// case-insensitive. A bare decimal such as "1.5" is rejected because its
// unit is ambiguous.
func ParseTimeInput(s string) (int, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if in == "" {
		return 0, fmt.Errorf("empty duration: %w", domain.ErrValidation)
	}

	if n, err := strconv.Atoi(in); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("duration %q must not be negative: %w", s, domain.ErrValidation)
		}
		return n, nil
	}

	m := timeInputPattern.FindStringSubmatch(in)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, fmt.Errorf("invalid duration %q (try 90, 45m, 1.5h or 2h30m): %w", s, domain.ErrValidation)
	}

	var minutes float64
	if m[1] != "" {
		h, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hours in %q: %w", s, domain.ErrValidation)
		}
		minutes += h * 60
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes in %q: %w", s, domain.ErrValidation)
		}
		minutes += float64(n)
	}

	return int(math.Round(minutes)), nil
}
