package solver

import (
	"strconv"
	"strings"

	"routeplan/internal/model"
)

const fullDaySec = 24 * 3600

// flexible time windows widen each bound by 30 minutes
const twToleranceSec = 1800

// parseTW converts a time window into [start, end] seconds from midnight.
// Accepts "HH:MM", "HH:MM:SS" or a full ISO datetime (time part is used).
// Missing bounds default to [0, 86400).
func parseTW(tw *model.TimeWindow) (int, int) {
	if tw == nil || (tw.Start == "" && tw.End == "") {
		return 0, fullDaySec
	}
	start, end := 0, fullDaySec
	if tw.Start != "" {
		start = clockSec(tw.Start)
	}
	if tw.End != "" {
		end = clockSec(tw.End)
	}
	return start, end
}

func clockSec(s string) int {
	t := s
	if i := strings.IndexByte(t, 'T'); i >= 0 {
		t = t[i+1:]
		// strip zone suffixes: Z, +hh:mm, -hh:mm
		t = strings.TrimSuffix(t, "Z")
		if i := strings.IndexAny(t, "+-"); i > 0 {
			t = t[:i]
		}
	}
	parts := strings.Split(t, ":")
	h, _ := strconv.Atoi(parts[0])
	m, sec := 0, 0
	if len(parts) > 1 {
		m, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(parts[2])
	}
	return h*3600 + m*60 + sec
}

// widen applies the flexible-time-windows tolerance to a parsed window.
func widen(start, end int) (int, int) {
	start -= twToleranceSec
	if start < 0 {
		start = 0
	}
	return start, end + twToleranceSec
}
