// Package timetable turns operator-mapped spreadsheet rows into candidate
// lesson sessions.
package timetable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

// ColumnMapping maps logical fields to zero-based column indices.
type ColumnMapping struct {
	Title int
	Group int
	Date  int
	Time  int
	// Room is optional.
	Room *int
}

// Validate rejects negative column indices.
func (m ColumnMapping) Validate() error {
	fields := []struct {
		name string
		idx  int
	}{
		{"title", m.Title},
		{"group", m.Group},
		{"date", m.Date},
		{"time", m.Time},
	}
	for _, f := range fields {
		if f.idx < 0 {
			return fmt.Errorf("timetable: column for %s must not be negative", f.name)
		}
	}
	if m.Room != nil && *m.Room < 0 {
		return fmt.Errorf("timetable: column for room must not be negative")
	}
	return nil
}

// Session is one candidate lesson for a single group.
type Session struct {
	// Row is the zero-based index of the source row.
	Row   int
	Title string
	Group string
	Range scheduler.TimeRange
	Room  string
}

// RowIssue explains why a row produced no sessions.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result is the outcome of a parse.
type Result struct {
	Sessions []Session
	Skipped  []RowIssue
}

// Skip reasons.
const (
	ReasonMissingTitle  = "missing title"
	ReasonMissingGroup  = "missing group"
	ReasonInvalidDate   = "invalid date"
	ReasonMissingRange  = "time has no range separator"
	ReasonInvalidTime   = "invalid time"
	ReasonEmptyTimeSpan = "end time is not after start time"
)

var dateLayouts = []string{
	"2.1.2006",
	"2006-1-2",
	"2/1/2006",
	"2.1.06",
}

var rangeSeparators = []string{"-", "–", "—"}

// Parser converts raw rows using a fixed time zone.
type Parser struct {
	location *time.Location
}

// NewParser builds a Parser that interprets dates and times in loc (UTC when nil).
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{location: loc}
}

// Parse extracts sessions from every row at or after startRow. Rows missing a
// required field are recorded in Skipped rather than failing the call, and a
// comma-separated group cell yields one session per group.
func (p *Parser) Parse(rows [][]any, mapping ColumnMapping, startRow int) Result {
	var result Result
	if startRow < 0 {
		startRow = 0
	}
	for idx := startRow; idx < len(rows); idx++ {
		sessions, reason := p.parseRow(idx, rows[idx], mapping)
		if reason != "" {
			result.Skipped = append(result.Skipped, RowIssue{Row: idx, Reason: reason})
			continue
		}
		result.Sessions = append(result.Sessions, sessions...)
	}
	return result
}

func (p *Parser) parseRow(idx int, row []any, mapping ColumnMapping) ([]Session, string) {
	title := cellText(row, mapping.Title)
	if title == "" {
		return nil, ReasonMissingTitle
	}

	groups := splitGroups(cellText(row, mapping.Group))
	if len(groups) == 0 {
		return nil, ReasonMissingGroup
	}

	day, ok := p.parseDate(cell(row, mapping.Date))
	if !ok {
		return nil, ReasonInvalidDate
	}

	startText, endText, ok := splitRange(cellText(row, mapping.Time))
	if !ok {
		return nil, ReasonMissingRange
	}
	start, err := scheduler.ParseTimeOfDay(startText)
	if err != nil {
		return nil, ReasonInvalidTime
	}
	end, err := scheduler.ParseTimeOfDay(endText)
	if err != nil {
		return nil, ReasonInvalidTime
	}
	span, err := scheduler.NewTimeRange(start.On(day, p.location), end.On(day, p.location))
	if err != nil {
		return nil, ReasonEmptyTimeSpan
	}

	var room string
	if mapping.Room != nil {
		room = cellText(row, *mapping.Room)
	}

	sessions := make([]Session, 0, len(groups))
	for _, group := range groups {
		sessions = append(sessions, Session{
			Row:   idx,
			Title: title,
			Group: group,
			Range: span,
			Room:  room,
		})
	}
	return sessions, ""
}

func (p *Parser) parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		y, m, d := v.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, p.location), true
	case float64:
		return p.fromSerial(v)
	case int:
		return p.fromSerial(float64(v))
	case int64:
		return p.fromSerial(float64(v))
	case string:
		text := strings.TrimSpace(v)
		if fields := strings.Fields(text); len(fields) > 0 {
			text = fields[0]
		}
		if text == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.ParseInLocation(layout, text, p.location); err == nil {
				return parsed, true
			}
		}
		// Workbooks opened with raw cell values hand dates over as serial numbers.
		if serial, err := strconv.ParseFloat(text, 64); err == nil && serial == math.Trunc(serial) {
			return p.fromSerial(serial)
		}
	}
	return time.Time{}, false
}

// Serial numbers outside these years are counts or years typed into the date
// column, not dates.
const (
	minSerialYear = 1950
	maxSerialYear = 2199
)

func (p *Parser) fromSerial(serial float64) (time.Time, bool) {
	if serial < 1 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	if y < minSerialYear || y > maxSerialYear {
		return time.Time{}, false
	}
	return time.Date(y, m, d, 0, 0, 0, 0, p.location), true
}

func splitRange(value string) (string, string, bool) {
	for _, sep := range rangeSeparators {
		if before, after, found := strings.Cut(value, sep); found {
			before, after = strings.TrimSpace(before), strings.TrimSpace(after)
			if before == "" || after == "" {
				return "", "", false
			}
			return before, after, true
		}
	}
	return "", "", false
}

func splitGroups(value string) []string {
	var groups []string
	for _, part := range strings.Split(value, ",") {
		if name := strings.TrimSpace(part); name != "" {
			groups = append(groups, name)
		}
	}
	return groups
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellText(row []any, idx int) string {
	switch v := cell(row, idx).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
