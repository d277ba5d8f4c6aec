package timetable

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	f.SetActiveSheet(index)

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestReadWorkbook(t *testing.T) {
	t.Parallel()

	buf := buildWorkbook(t, "Расписание", [][]any{
		{"Предмет", "Группа", "Дата", "Время", "Аудитория"},
		{"Physics", "A-101", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), "10:40-12:10", 214},
		{"Chemistry", "B-202", "16.01.2024", "12:30-14:00", "Lab"},
	})

	rows, err := ReadWorkbook(bytes.NewReader(buf.Bytes()), "Расписание")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	result := NewParser(time.UTC).Parse(rows, standardMapping, 1)
	if len(result.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d: %+v", len(result.Sessions), result.Skipped)
	}
	first := result.Sessions[0]
	if want := time.Date(2024, time.January, 15, 10, 40, 0, 0, time.UTC); !first.Range.Start.Equal(want) {
		t.Fatalf("first session starts %v, want %v", first.Range.Start, want)
	}
	if first.Room != "214" {
		t.Fatalf("expected numeric room rendered as text, got %q", first.Room)
	}
	if result.Sessions[1].Room != "Lab" {
		t.Fatalf("unexpected room %q", result.Sessions[1].Room)
	}
}

func TestReadWorkbook_MissingSheet(t *testing.T) {
	t.Parallel()

	buf := buildWorkbook(t, "Schedule", [][]any{{"a"}})
	_, err := ReadWorkbook(bytes.NewReader(buf.Bytes()), "Other")
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestReadWorkbook_RejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ReadWorkbook(strings.NewReader("not a workbook"), ""); err == nil {
		t.Fatal("expected error for invalid workbook")
	}
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	input := "title,group,date,time,room\n" +
		"Algebra,\"A-101, B-202\",15.01.2024,09:00-10:30,305\n" +
		"Geometry,C-303,16.01.2024,11:00-12:00\n"

	rows, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	result := NewParser(time.UTC).Parse(rows, standardMapping, 1)
	if len(result.Sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d: %+v", len(result.Sessions), result.Skipped)
	}
}
