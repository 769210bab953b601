package utils_test

import (
	"testing"
	"time"

	"github.com/tradeforge/trading-backend/pkg/utils"
)

func TestFormatSymbol(t *testing.T) {
	cases := map[string]string{
		"nifty 50":    "NIFTY 50",
		" SENSEX ":    "SENSEX",
		"NIFTY\t50":   "NIFTY 50",
		"nifty  bank": "NIFTY BANK",
	}
	for in, want := range cases {
		if got := utils.FormatSymbol(in); got != want {
			t.Errorf("FormatSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	cases := map[string]time.Duration{
		"5d":  5 * 24 * time.Hour,
		"1mo": 30 * 24 * time.Hour,
		"6mo": 180 * 24 * time.Hour,
		"1y":  365 * 24 * time.Hour,
		"2Y":  2 * 365 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := utils.ParsePeriod(in)
		if err != nil {
			t.Errorf("ParsePeriod(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePeriod(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"", "d", "0d", "1x", "mo1"} {
		if _, err := utils.ParsePeriod(bad); err == nil {
			t.Errorf("ParsePeriod(%q) should fail", bad)
		}
	}
}

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"1d":  24 * time.Hour,
	}
	for in, want := range cases {
		got, err := utils.ParseInterval(in)
		if err != nil {
			t.Errorf("ParseInterval(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseInterval(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := utils.ParseInterval("1mo"); err == nil {
		t.Error("ParseInterval should reject period units")
	}
}

func TestPercentChange(t *testing.T) {
	if got := utils.PercentChange(100, 110); got != 10 {
		t.Errorf("PercentChange(100, 110) = %v, want 10", got)
	}
	if got := utils.PercentChange(100, 95); got != -5 {
		t.Errorf("PercentChange(100, 95) = %v, want -5", got)
	}
	if got := utils.PercentChange(0, 50); got != 0 {
		t.Errorf("PercentChange from zero should be 0, got %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Second:                "0m",
		90 * time.Minute:                "1h 30m",
		26*time.Hour + 5*time.Minute:    "1d 2h 5m",
		3*24*time.Hour + 45*time.Minute: "3d 0h 45m",
	}
	for in, want := range cases {
		if got := utils.FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeRangeContains(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := utils.TimeRange{Start: start, End: start.AddDate(0, 0, 10)}

	if !tr.Contains(start) {
		t.Error("Range should contain its start")
	}
	if !tr.Contains(tr.End) {
		t.Error("Range should contain its end")
	}
	if tr.Contains(start.AddDate(0, 0, 11)) {
		t.Error("Range should not contain times after its end")
	}
	if tr.Duration() != 10*24*time.Hour {
		t.Errorf("Duration incorrect: %v", tr.Duration())
	}
}
