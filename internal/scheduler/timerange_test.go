package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestNewTimeRange(t *testing.T) {
	t.Parallel()

	start := at(9, 0)

	if _, err := NewTimeRange(start, start.Add(90*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, end := range map[string]time.Time{
		"equal bounds": start,
		"reversed":     start.Add(-time.Minute),
	} {
		end := end
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTimeRange(start, end)
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected InvalidRangeError, got %v", err)
			}
		})
	}
}

func TestTimeRange_OverlapsIsSymmetric(t *testing.T) {
	t.Parallel()

	ranges := []TimeRange{
		{Start: at(8, 0), End: at(9, 0)},
		{Start: at(8, 30), End: at(9, 30)},
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(7, 0), End: at(12, 0)},
		{Start: at(10, 0), End: at(10, 1)},
	}
	for i, a := range ranges {
		for j, b := range ranges {
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Fatalf("overlap not symmetric for %d/%d", i, j)
			}
		}
	}

	if ranges[0].Overlaps(ranges[2]) {
		t.Fatal("touching ranges must not overlap")
	}
	if !ranges[3].Contains(ranges[1]) || ranges[1].Contains(ranges[3]) {
		t.Fatal("unexpected containment result")
	}
	if !ranges[0].ContainsInstant(at(8, 0)) || ranges[0].ContainsInstant(at(9, 0)) {
		t.Fatal("expected half-open instant containment")
	}
}

func TestTimeRange_DurationMinutes(t *testing.T) {
	t.Parallel()

	r := TimeRange{Start: at(9, 0), End: at(10, 30).Add(59 * time.Second)}
	if got := r.DurationMinutes(); got != 90 {
		t.Fatalf("expected 90 minutes, got %d", got)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:30", want: TimeOfDay{Hour: 9, Minute: 30}},
		{in: "9:05", want: TimeOfDay{Hour: 9, Minute: 5}},
		{in: "13.45", want: TimeOfDay{Hour: 13, Minute: 45}},
		{in: " 08:00 ", want: TimeOfDay{Hour: 8}},
		{in: "24:00", wantErr: true},
		{in: "12:7", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimeOfDay(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTimeOfDay_On(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("MSK", 3*60*60)
	day := time.Date(2024, time.January, 1, 23, 30, 0, 0, time.UTC) // Jan 2 02:30 MSK
	got := TimeOfDay{Hour: 10, Minute: 15}.On(day, loc)
	want := time.Date(2024, time.January, 2, 10, 15, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClockWindow(t *testing.T) {
	t.Parallel()

	r := TimeRange{Start: at(9, 0), End: at(10, 30)}
	if got := ClockWindow(r, time.UTC); got != "9:00–10:30" {
		t.Fatalf("unexpected window %q", got)
	}
}
