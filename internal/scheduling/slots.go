package scheduling

import (
	"fmt"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// ParseClock converts a zero-padded 24-hour HH:MM string to minutes since
// midnight.
func ParseClock(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, fmt.Errorf("invalid clock format: %q", clock)
	}

	var h, m int
	if _, err := fmt.Sscanf(clock, "%02d:%02d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock format: %q", clock)
	}

	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock out of range: %q", clock)
	}

	return h*60 + m, nil
}

// FormatClock converts minutes since midnight to a zero-padded HH:MM string.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// overlap. Exact adjacency (e1 == s2 or e2 == s1) is not an overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// bookedInterval is an existing appointment reduced to its minute bounds.
type bookedInterval struct {
	start int
	end   int
}

// toIntervals converts slot-blocking appointments to minute intervals,
// skipping any with malformed times.
func toIntervals(appointments []*types.Appointment) []bookedInterval {
	intervals := make([]bookedInterval, 0, len(appointments))
	for _, apt := range appointments {
		if !apt.Status.Blocks() {
			continue
		}
		start, err := ParseClock(apt.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseClock(apt.EndTime)
		if err != nil {
			continue
		}
		intervals = append(intervals, bookedInterval{start: start, end: end})
	}
	return intervals
}

// ComputeAvailableSlots generates the free slots of durationMinutes within
// clinic hours, at stepMinutes granularity, against the given bookings.
// A slot ending exactly at closing time is valid. Candidates never start
// before opening time. O(slots x bookings), fine for daily volumes.
func ComputeAvailableSlots(booked []*types.Appointment, durationMinutes int, openClock, closeClock string, stepMinutes int) ([]*types.TimeSlot, error) {
	open, err := ParseClock(openClock)
	if err != nil {
		return nil, fmt.Errorf("invalid opening time: %w", err)
	}
	closing, err := ParseClock(closeClock)
	if err != nil {
		return nil, fmt.Errorf("invalid closing time: %w", err)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("invalid duration: %d", durationMinutes)
	}
	if stepMinutes <= 0 {
		return nil, fmt.Errorf("invalid step: %d", stepMinutes)
	}

	intervals := toIntervals(booked)

	var slots []*types.TimeSlot
	for start := open; start+durationMinutes <= closing; start += stepMinutes {
		end := start + durationMinutes

		free := true
		for _, iv := range intervals {
			if Overlaps(start, end, iv.start, iv.end) {
				free = false
				break
			}
		}

		if free {
			slots = append(slots, &types.TimeSlot{
				Start: FormatClock(start),
				End:   FormatClock(end),
			})
		}
	}

	return slots, nil
}
