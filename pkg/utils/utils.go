// Package utils provides utility functions for the trading backend.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatSymbol normalizes an index symbol for catalog lookups.
func FormatSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	symbol = strings.ToUpper(symbol)

	// Collapse runs of whitespace so "NIFTY  50" and "nifty 50" match.
	fields := strings.Fields(symbol)
	return strings.Join(fields, " ")
}

// ParsePeriod parses a history period string (e.g., "5d", "1mo", "1y").
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid period: %q", s)
	}

	value := 0
	for i, c := range s {
		if c >= '0' && c <= '9' {
			value = value*10 + int(c-'0')
		} else {
			if value == 0 {
				return 0, fmt.Errorf("invalid period: %q", s)
			}
			unit := s[i:]
			switch unit {
			case "d", "day", "days":
				return time.Duration(value) * 24 * time.Hour, nil
			case "w", "wk", "week", "weeks":
				return time.Duration(value) * 7 * 24 * time.Hour, nil
			case "mo", "month", "months":
				return time.Duration(value) * 30 * 24 * time.Hour, nil
			case "y", "yr", "year", "years":
				return time.Duration(value) * 365 * 24 * time.Hour, nil
			default:
				return 0, fmt.Errorf("unknown period unit: %q", unit)
			}
		}
	}

	return 0, fmt.Errorf("invalid period: %q", s)
}

// ParseInterval parses a bar interval string (e.g., "5m", "1h", "1d").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval: %q", s)
	}

	value := 0
	for i, c := range s {
		if c >= '0' && c <= '9' {
			value = value*10 + int(c-'0')
		} else {
			if value == 0 {
				return 0, fmt.Errorf("invalid interval: %q", s)
			}
			unit := s[i:]
			switch unit {
			case "m", "min", "minute", "minutes":
				return time.Duration(value) * time.Minute, nil
			case "h", "hr", "hour", "hours":
				return time.Duration(value) * time.Hour, nil
			case "d", "day", "days":
				return time.Duration(value) * 24 * time.Hour, nil
			default:
				return 0, fmt.Errorf("unknown interval unit: %q", unit)
			}
		}
	}

	return 0, fmt.Errorf("invalid interval: %q", s)
}

// PercentChange calculates the percentage change between two values.
func PercentChange(old, new float64) float64 {
	if old == 0 {
		return 0
	}
	return (new - old) / old * 100
}

// TimeRange represents a time range.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the duration of the time range.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Contains checks if a time is within the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return (t.Equal(tr.Start) || t.After(tr.Start)) && (t.Equal(tr.End) || t.Before(tr.End))
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
