package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// End adds an HH:MM duration to an HH:MM start time. Minutes carry into
// hours; hours wrap at 24 without any notion of the next day, so
// End("23:30", "01:00") is "00:30".
func End(start, duration string) (string, error) {
	h1, m1, err := splitClock(start)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	h2, m2, err := splitClock(duration)
	if err != nil {
		return "", fmt.Errorf("duration: %w", err)
	}

	m := m1 + m2
	h := (h1 + h2 + m/60) % 24
	return fmt.Sprintf("%02d:%02d", h, m%60), nil
}

func splitClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not HH:MM: %w", s, err)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not HH:MM: %w", s, err)
	}
	return h, m, nil
}
