package scheduler

import "sort"

// LabeledRange attaches an opaque caller label to a time range.
type LabeledRange struct {
	Label string
	Range TimeRange
}

// Conflict describes two adjacent ranges of one owner that overlap.
type Conflict struct {
	LabelA         string
	LabelB         string
	OverlapMinutes int
}

// DetectConflicts sorts the ranges by start (stable, so equal starts keep the
// caller's order) and compares each range with its immediate successor only.
func DetectConflicts(ranges []LabeledRange) []Conflict {
	if len(ranges) < 2 {
		return nil
	}

	ordered := make([]LabeledRange, len(ranges))
	copy(ordered, ranges)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Before(ordered[j].Range.Start)
	})

	var conflicts []Conflict
	for i := 0; i+1 < len(ordered); i++ {
		a, b := ordered[i], ordered[i+1]
		if !a.Range.Overlaps(b.Range) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			LabelA:         a.Label,
			LabelB:         b.Label,
			OverlapMinutes: overlapMinutes(a.Range, b.Range),
		})
	}
	return conflicts
}

func overlapMinutes(a, b TimeRange) int {
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Minutes())
}
