package availability

import (
	"testing"
	"time"
)

// 2026-03-09 is a Monday.
var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func starts(slots []Slot) []time.Time {
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func TestSlotsBackToBack(t *testing.T) {
	windows := []Interval{{Start: at(9, 0), End: at(11, 0)}}
	got := Slots(windows, nil, 30*time.Minute, nil, day, day, day.Add(24*time.Hour))

	want := []time.Time{at(9, 0), at(9, 30), at(10, 0), at(10, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(got), len(want), starts(got))
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Errorf("slot %d = %v, want %v", i, got[i].Start, want[i])
		}
		if !got[i].End.Equal(want[i].Add(30 * time.Minute)) {
			t.Errorf("slot %d end = %v", i, got[i].End)
		}
	}
}

func TestSlotsDurationMustFitWindow(t *testing.T) {
	// 90-minute window holds exactly one 60-minute slot.
	windows := []Interval{{Start: at(9, 0), End: at(10, 30)}}
	got := Slots(windows, nil, time.Hour, nil, day, day, day.Add(24*time.Hour))

	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) {
		t.Fatalf("got %v, want single 09:00 slot", starts(got))
	}
}

func TestSlotsBusyRemoval(t *testing.T) {
	windows := []Interval{{Start: at(9, 0), End: at(12, 0)}}
	busy := []Interval{{Start: at(10, 0), End: at(11, 0)}}
	got := Slots(windows, nil, time.Hour, busy, day, day, day.Add(24*time.Hour))

	want := []time.Time{at(9, 0), at(11, 0)}
	if len(got) != 2 || !got[0].Start.Equal(want[0]) || !got[1].Start.Equal(want[1]) {
		t.Fatalf("got %v, want %v", starts(got), want)
	}
}

func TestSlotsPartialBusyOverlapRemovesSlot(t *testing.T) {
	windows := []Interval{{Start: at(9, 0), End: at(11, 0)}}
	// Busy 09:30-10:30 clips both hour-long candidates.
	busy := []Interval{{Start: at(9, 30), End: at(10, 30)}}
	got := Slots(windows, nil, time.Hour, busy, day, day, day.Add(24*time.Hour))

	if len(got) != 0 {
		t.Fatalf("got %v, want none", starts(got))
	}
}

func TestSlotsClosedWeekday(t *testing.T) {
	windows := []Interval{{Start: at(9, 0), End: at(11, 0)}}
	closed := map[time.Weekday]bool{time.Monday: true}
	got := Slots(windows, closed, time.Hour, nil, day, day, day.Add(24*time.Hour))

	if len(got) != 0 {
		t.Fatalf("got %v, want none on a closed weekday", starts(got))
	}
}

func TestSlotsExcludesPast(t *testing.T) {
	windows := []Interval{{Start: at(9, 0), End: at(12, 0)}}
	now := at(10, 15)
	got := Slots(windows, nil, time.Hour, nil, now, day, day.Add(24*time.Hour))

	if len(got) != 1 || !got[0].Start.Equal(at(11, 0)) {
		t.Fatalf("got %v, want only 11:00", starts(got))
	}
}

func TestSlotsOverlappingWindowsUnion(t *testing.T) {
	windows := []Interval{
		{Start: at(9, 0), End: at(11, 0)},
		{Start: at(9, 0), End: at(10, 0)},
	}
	got := Slots(windows, nil, time.Hour, nil, day, day, day.Add(24*time.Hour))

	want := []time.Time{at(9, 0), at(10, 0)}
	if len(got) != 2 || !got[0].Start.Equal(want[0]) || !got[1].Start.Equal(want[1]) {
		t.Fatalf("got %v, want %v", starts(got), want)
	}
}

func TestSlotsAdjacentWindowsUnionCoverage(t *testing.T) {
	// A 90-minute service fits the union 09:00-11:00 even though
	// neither window holds it alone.
	windows := []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(10, 0), End: at(11, 0)},
	}
	got := Slots(windows, nil, 90*time.Minute, nil, day, day, day.Add(24*time.Hour))

	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) {
		t.Fatalf("got %v, want single 09:00 slot", starts(got))
	}
	if !got[0].End.Equal(at(10, 30)) {
		t.Fatalf("slot end = %v, want 10:30", got[0].End)
	}
}

func TestSlotsEmptyInputs(t *testing.T) {
	if got := Slots(nil, nil, time.Hour, nil, day, day, day.Add(time.Hour)); len(got) != 0 {
		t.Fatalf("no windows: got %v", starts(got))
	}
	windows := []Interval{{Start: at(9, 0), End: at(10, 0)}}
	if got := Slots(windows, nil, 0, nil, day, day, day.Add(time.Hour)); len(got) != 0 {
		t.Fatal("zero duration must yield nothing")
	}
	if got := Slots(windows, nil, time.Hour, nil, day, at(12, 0), at(10, 0)); len(got) != 0 {
		t.Fatal("inverted range must yield nothing")
	}
}
