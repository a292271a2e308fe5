// Package availability computes bookable slots for a provider from
// their published windows, weekly closures and already-held time.
package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Overlaps(start, end time.Time) bool {
	return iv.Start.Before(end) && start.Before(iv.End)
}

// Slot is one offerable appointment start.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Slots enumerates candidate starts of the given duration inside the
// union of the windows: overlapping and back-to-back windows are
// merged first, so a service spanning a window boundary still fits.
// Within each merged window candidates step by the duration, making
// consecutive slots back-to-back. A candidate survives when it lies
// inside [from, to), does not start before now, does not fall on a
// closed weekday and does not overlap any busy interval. The result
// is sorted ascending.
func Slots(windows []Interval, closed map[time.Weekday]bool, duration time.Duration, busy []Interval, now, from, to time.Time) []Slot {
	if duration <= 0 || !to.After(from) {
		return nil
	}

	var out []Slot
	for _, win := range merge(windows) {
		for start := win.Start; !start.Add(duration).After(win.End); start = start.Add(duration) {
			end := start.Add(duration)
			if start.Before(from) || end.After(to) {
				continue
			}
			if start.Before(now) {
				continue
			}
			if closed[start.Weekday()] {
				continue
			}
			if overlapsAny(start, end, busy) {
				continue
			}
			out = append(out, Slot{Start: start, End: end})
		}
	}
	return out
}

// merge unions overlapping and adjacent windows into disjoint
// intervals sorted by start. Empty and inverted windows are dropped.
func merge(windows []Interval) []Interval {
	valid := make([]Interval, 0, len(windows))
	for _, win := range windows {
		if win.End.After(win.Start) {
			valid = append(valid, win)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	out := []Interval{valid[0]}
	for _, win := range valid[1:] {
		last := &out[len(out)-1]
		if !win.Start.After(last.End) {
			if win.End.After(last.End) {
				last.End = win.End
			}
			continue
		}
		out = append(out, win)
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
