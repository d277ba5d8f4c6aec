package recurrence

import (
	"testing"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

func BenchmarkExpanderExpand(b *testing.B) {
	expander := NewExpander(time.UTC)
	rule := Rule{
		From:     time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		Weekdays: []int{1, 2, 3, 4, 5},
		Start:    scheduler.TimeOfDay{Hour: 9},
		End:      scheduler.TimeOfDay{Hour: 10, Minute: 30},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sessions, err := expander.Expand(rule)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(sessions) == 0 {
			b.Fatal("expected sessions to be generated")
		}
	}
}
