package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// absoluteLayouts are tried in order after relative formats.
var absoluteLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseRelativeDate parses "today", "tomorrow", "yesterday", "+7d", "-3d", "+2w", "+1m".
// Returns nil, nil if the string is not a relative date format.
func parseRelativeDate(dateStr string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lower := strings.ToLower(dateStr)

	switch lower {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	case "yesterday":
		t := today.AddDate(0, 0, -1)
		return &t, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return nil, nil
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}

	return &result, nil
}

// ParseDueFlag parses a due date-time relative to now, in now's location.
// Relative forms resolve to midnight unless an " HH:MM" suffix follows them,
// e.g. "tomorrow 09:30". Returns nil, nil for an empty string.
func ParseDueFlag(dateStr string, now time.Time) (*time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return nil, nil
	}

	head, clock := dateStr, ""
	if i := strings.LastIndex(dateStr, " "); i > 0 {
		head, clock = dateStr[:i], dateStr[i+1:]
	}
	if clock != "" {
		if t, err := parseRelativeDate(head, now); err == nil && t != nil {
			hm, err := time.Parse("15:04", clock)
			if err != nil {
				return nil, ErrInvalidDate(dateStr)
			}
			at := t.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute)
			return &at, nil
		}
	}

	t, err := parseRelativeDate(dateStr, now)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	for _, layout := range absoluteLayouts {
		if parsed, err := time.ParseInLocation(layout, dateStr, now.Location()); err == nil {
			return &parsed, nil
		}
	}
	if parsed, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return &parsed, nil
	}

	return nil, ErrInvalidDate(dateStr)
}
