package scheduler

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func labeled(label string, startH, startM, endH, endM int) LabeledRange {
	return LabeledRange{Label: label, Range: TimeRange{Start: at(startH, startM), End: at(endH, endM)}}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	t.Run("touching boundary is not a conflict", func(t *testing.T) {
		t.Parallel()

		conflicts := DetectConflicts([]LabeledRange{
			labeled("a", 9, 0, 10, 0),
			labeled("b", 10, 0, 11, 0),
		})
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("partial overlap reports minutes", func(t *testing.T) {
		t.Parallel()

		conflicts := DetectConflicts([]LabeledRange{
			labeled("b", 10, 0, 11, 0),
			labeled("a", 9, 0, 10, 30),
		})
		if len(conflicts) != 1 {
			t.Fatalf("expected one conflict, got %+v", conflicts)
		}
		got := conflicts[0]
		if got.LabelA != "a" || got.LabelB != "b" || got.OverlapMinutes != 30 {
			t.Fatalf("unexpected conflict %+v", got)
		}
	})

	t.Run("equal starts keep insertion order", func(t *testing.T) {
		t.Parallel()

		conflicts := DetectConflicts([]LabeledRange{
			labeled("first", 9, 0, 10, 0),
			labeled("second", 9, 0, 9, 45),
		})
		if len(conflicts) != 1 {
			t.Fatalf("expected one conflict, got %+v", conflicts)
		}
		if conflicts[0].LabelA != "first" || conflicts[0].LabelB != "second" {
			t.Fatalf("expected stable ordering, got %+v", conflicts[0])
		}
		if conflicts[0].OverlapMinutes != 45 {
			t.Fatalf("expected 45 minutes, got %d", conflicts[0].OverlapMinutes)
		}
	})

	t.Run("only adjacent pairs are compared", func(t *testing.T) {
		t.Parallel()

		conflicts := DetectConflicts([]LabeledRange{
			labeled("long", 9, 0, 12, 0),
			labeled("mid", 9, 30, 10, 0),
			labeled("late", 11, 0, 11, 30),
		})
		if len(conflicts) != 1 {
			t.Fatalf("expected a single adjacent conflict, got %+v", conflicts)
		}
		if conflicts[0].LabelA != "long" || conflicts[0].LabelB != "mid" || conflicts[0].OverlapMinutes != 30 {
			t.Fatalf("unexpected conflict %+v", conflicts[0])
		}
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		t.Parallel()

		input := []LabeledRange{labeled("b", 11, 0, 12, 0), labeled("a", 9, 0, 10, 0)}
		DetectConflicts(input)
		if input[0].Label != "b" {
			t.Fatalf("input mutated: %+v", input)
		}
	})
}
