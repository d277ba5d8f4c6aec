package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/persistence/memory"
	"github.com/Dimasikck/teacher-tool/internal/testfixtures"
)

type apiEnv struct {
	handler http.Handler
	store   *memory.Store
	group   persistence.Group
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store := memory.New()
	group := testfixtures.NewGroup()
	if err := store.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		return repos.Groups.CreateGroup(ctx, group)
	}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	service := testfixtures.NewServiceFactory().NewScheduleService(testfixtures.ScheduleServiceDeps{Store: store, Logger: logger})
	router := NewRouter(RouterConfig{
		Events:     NewEventHandler(service, logger),
		Imports:    NewImportHandler(service, logger),
		Sync:       NewSyncHandler(service, logger),
		Middleware: []func(http.Handler) http.Handler{RequestLogger(logger), RequireOwner(logger)},
	})
	return &apiEnv{handler: router, store: store, group: group}
}

func (env *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(OwnerHeader, testfixtures.OwnerID)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, req)
	return recorder
}

func (env *apiEnv) event(title, start, end string) map[string]any {
	return map[string]any{
		"group_id": env.group.ID,
		"title":    title,
		"start":    start,
		"end":      end,
	}
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}

func TestEventHandlers_Lifecycle(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	created := env.do(t, http.MethodPost, "/events", env.event("Algebra", "2024-01-10T09:00:00Z", "2024-01-10T10:30:00Z"))
	expectStatus(t, created, http.StatusCreated)
	result := decodeBody[eventResultDTO](t, created)
	if result.Event.ID != "id-1" || result.LessonID != "id-2" || !result.LessonCreated {
		t.Fatalf("unexpected create result %#v", result)
	}
	if result.Event.Color != "#3788d8" || result.Event.OwnerID != testfixtures.OwnerID {
		t.Fatalf("unexpected event %#v", result.Event)
	}

	got := env.do(t, http.MethodGet, "/events/id-1", nil)
	expectStatus(t, got, http.StatusOK)
	if dto := decodeBody[eventDTO](t, got); dto.Title != "Algebra" || dto.Start != "2024-01-10T09:00:00Z" {
		t.Fatalf("unexpected event %#v", dto)
	}

	updated := env.do(t, http.MethodPut, "/events/id-1", env.event("Geometry", "2024-01-11T09:00:00Z", "2024-01-11T10:30:00Z"))
	expectStatus(t, updated, http.StatusOK)
	if dto := decodeBody[eventResultDTO](t, updated); dto.LessonID != "id-2" || dto.LessonCreated {
		t.Fatalf("expected paired lesson to move, got %#v", dto)
	}

	list := env.do(t, http.MethodGet, "/events?from=2024-01-11T00:00:00Z&to=2024-01-12T00:00:00Z", nil)
	expectStatus(t, list, http.StatusOK)
	if events := decodeBody[listEventsResponse](t, list).Events; len(events) != 1 || events[0].Title != "Geometry" {
		t.Fatalf("unexpected listing %#v", events)
	}

	deleted := env.do(t, http.MethodDelete, "/events/id-1", nil)
	expectStatus(t, deleted, http.StatusOK)
	if dto := decodeBody[deleteEventResponse](t, deleted); dto.EventID != "id-1" || dto.LessonID != "id-2" {
		t.Fatalf("unexpected delete result %#v", dto)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/events/id-1", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodDelete, "/events/id-1", nil), http.StatusNotFound)
}

func TestEventHandlers_Errors(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
		expectedFields []string
	}{
		{
			name:           "malformed json",
			method:         http.MethodPost,
			path:           "/events",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing title and bad color",
			method:         http.MethodPost,
			path:           "/events",
			body:           map[string]any{"group_id": env.group.ID, "start": "2024-01-10T09:00:00Z", "end": "2024-01-10T10:00:00Z", "color": "blue"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedFields: []string{"title", "color"},
		},
		{
			name:           "start is not RFC3339",
			method:         http.MethodPost,
			path:           "/events",
			body:           env.event("Algebra", "10.01.2024 09:00", "2024-01-10T10:00:00Z"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedFields: []string{"start"},
		},
		{
			name:           "end before start",
			method:         http.MethodPost,
			path:           "/events",
			body:           env.event("Algebra", "2024-01-10T10:00:00Z", "2024-01-10T09:00:00Z"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedFields: []string{"end"},
		},
		{
			name:           "unknown group",
			method:         http.MethodPost,
			path:           "/events",
			body:           map[string]any{"group_id": "missing", "title": "Algebra", "start": "2024-01-10T09:00:00Z", "end": "2024-01-10T10:00:00Z"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedFields: []string{"group_id"},
		},
		{
			name:           "bad list window",
			method:         http.MethodGet,
			path:           "/events?from=yesterday",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedFields: []string{"from"},
		},
		{
			name:           "update unknown event",
			method:         http.MethodPut,
			path:           "/events/nope",
			body:           env.event("Algebra", "2024-01-10T09:00:00Z", "2024-01-10T10:00:00Z"),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "nested event path",
			method:         http.MethodGet,
			path:           "/events/a/b",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "method not allowed",
			method:         http.MethodPatch,
			path:           "/events",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			recorder := env.do(t, tc.method, tc.path, tc.body)
			expectStatus(t, recorder, tc.expectedStatus)
			if len(tc.expectedFields) == 0 {
				return
			}
			body := decodeBody[errorResponse](t, recorder)
			for _, field := range tc.expectedFields {
				if body.Errors[field] == "" {
					t.Fatalf("expected error for %s, got %#v", field, body.Errors)
				}
			}
		})
	}
}

func TestEventHandlers_RejectsMissingOwner(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, req)
	expectStatus(t, recorder, http.StatusUnauthorized)
}

func TestEventHandlers_GroupNotFoundIsLocalized(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	body := map[string]any{"group_id": "missing", "title": "Algebra", "start": "2024-01-10T09:00:00Z", "end": "2024-01-10T10:00:00Z"}
	recorder := env.do(t, http.MethodPost, "/events", body)
	expectStatus(t, recorder, http.StatusUnprocessableEntity)
	if msg := decodeBody[errorResponse](t, recorder).Errors["group_id"]; msg != "Группа не найдена." {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestEventHandlers_RecurringSeries(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	series := map[string]any{
		"group_id":   env.group.ID,
		"title":      "Seminar",
		"from":       "2024-01-01",
		"to":         "2024-01-14",
		"weekdays":   []int{1, 3},
		"start_time": "10:00",
		"end_time":   "11:30",
	}

	recorder := env.do(t, http.MethodPost, "/events/recurring", series)
	expectStatus(t, recorder, http.StatusCreated)
	summary := decodeBody[seriesResponse](t, recorder)
	if summary.CreatedCount != 4 || summary.SkippedCount != 0 || len(summary.Events) != 4 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if summary.Events[0].Start != "2024-01-01T10:00:00Z" {
		t.Fatalf("unexpected first session %#v", summary.Events[0])
	}

	again := env.do(t, http.MethodPost, "/events/recurring", series)
	expectStatus(t, again, http.StatusCreated)
	if repeat := decodeBody[seriesResponse](t, again); repeat.CreatedCount != 0 || repeat.SkippedCount != 4 {
		t.Fatalf("expected repeat to skip, got %#v", repeat)
	}

	series["weekdays"] = []int{8}
	invalid := env.do(t, http.MethodPost, "/events/recurring", series)
	expectStatus(t, invalid, http.StatusUnprocessableEntity)
	if body := decodeBody[errorResponse](t, invalid); body.Errors["weekdays[0]"] == "" {
		t.Fatalf("expected weekday error, got %#v", body.Errors)
	}
}

func TestEventHandlers_ConflictsAndFreeSlots(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	expectStatus(t, env.do(t, http.MethodPost, "/events", env.event("A", "2024-01-08T09:00:00Z", "2024-01-08T10:30:00Z")), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/events", env.event("C", "2024-01-08T10:00:00Z", "2024-01-08T11:00:00Z")), http.StatusCreated)

	conflicts := env.do(t, http.MethodGet, "/conflicts", nil)
	expectStatus(t, conflicts, http.StatusOK)
	reports := decodeBody[conflictsResponse](t, conflicts).Conflicts
	if len(reports) != 1 || reports[0].OverlapMinutes != 30 {
		t.Fatalf("unexpected conflicts %#v", reports)
	}

	slots := env.do(t, http.MethodGet, "/free-slots?duration=90&preferred_days=saturday", nil)
	expectStatus(t, slots, http.StatusOK)
	found := decodeBody[freeSlotsResponse](t, slots).Slots
	if len(found) == 0 || found[0].Day != "Saturday" || found[0].Date != "2024-01-13" {
		t.Fatalf("unexpected slots %#v", found)
	}

	for _, path := range []string{"/free-slots", "/free-slots?duration=0", "/free-slots?duration=60&preferred_days=Funday", "/free-slots?duration=60&days=-1"} {
		expectStatus(t, env.do(t, http.MethodGet, path, nil), http.StatusUnprocessableEntity)
	}
}

func importRows() [][]any {
	return [][]any{
		{"Предмет", "Группа", "Дата", "Время", "Аудитория"},
		{"Algebra", "A-101, B-202", "08.01.2024", "10:00-11:30", "204"},
		{"Physics", "A-101", "not a date", "10:00-11:30", ""},
		{"Algebra", "A-101", "08.01.2024", "10.00-11.30", "204"},
		{"Chemistry", "A-101", "09.01.2024", "12:00", ""},
	}
}

func TestImportHandlers_Rows(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	body := map[string]any{
		"rows":      importRows(),
		"mapping":   map[string]int{"title": 0, "group": 1, "date": 2, "time": 3, "room": 4},
		"start_row": 1,
	}

	recorder := env.do(t, http.MethodPost, "/imports", body)
	expectStatus(t, recorder, http.StatusOK)
	summary := decodeBody[importResponse](t, recorder)
	if summary.CreatedCount != 2 || summary.DuplicateCount != 1 || len(summary.SkippedRows) != 2 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if len(summary.GroupsCreated) != 2 || summary.Lessons[0] != "Algebra (A-101, 08.01.2024 10:00)" {
		t.Fatalf("unexpected summary %#v", summary)
	}

	missing := env.do(t, http.MethodPost, "/imports", map[string]any{"rows": importRows(), "mapping": map[string]int{"group": 1, "date": 2, "time": 3}})
	expectStatus(t, missing, http.StatusUnprocessableEntity)
	if errs := decodeBody[errorResponse](t, missing).Errors; errs["mapping.title"] == "" {
		t.Fatalf("expected mapping.title error, got %#v", errs)
	}
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file part failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/imports/workbook", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(OwnerHeader, testfixtures.OwnerID)
	return req
}

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName failed: %v", err)
		}
		values := row
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}
	return buf.Bytes()
}

func TestImportHandlers_Workbook(t *testing.T) {
	t.Parallel()

	mapping := map[string]string{
		"title_column": "0",
		"group_column": "1",
		"date_column":  "2",
		"time_column":  "3",
		"room_column":  "4",
		"start_row":    "1",
	}
	withSheet := func(sheet string) map[string]string {
		fields := map[string]string{"sheet": sheet}
		for k, v := range mapping {
			fields[k] = v
		}
		return fields
	}
	csvContent := "Предмет,Группа,Дата,Время,Аудитория\n" +
		"Algebra,\"A-101, B-202\",08.01.2024,10:00-11:30,204\n" +
		"Chemistry,A-101,09.01.2024,12:00,\n"

	tests := []struct {
		name           string
		filename       string
		content        []byte
		fields         map[string]string
		expectedStatus int
		expectedCreate int
	}{
		{
			name:           "xlsx workbook",
			filename:       "timetable.xlsx",
			content:        workbookBytes(t, importRows()),
			fields:         mapping,
			expectedStatus: http.StatusOK,
			expectedCreate: 2,
		},
		{
			name:           "csv file",
			filename:       "timetable.CSV",
			content:        []byte(csvContent),
			fields:         mapping,
			expectedStatus: http.StatusOK,
			expectedCreate: 2,
		},
		{
			name:           "unknown sheet",
			filename:       "timetable.xlsx",
			content:        workbookBytes(t, importRows()),
			fields:         withSheet("Missing"),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "not a workbook",
			filename:       "timetable.xlsx",
			content:        []byte("plain text"),
			fields:         mapping,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing file",
			fields:         mapping,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing mapping",
			filename:       "timetable.csv",
			content:        []byte(csvContent),
			fields:         map[string]string{"title_column": "0"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newAPIEnv(t)
			recorder := httptest.NewRecorder()
			env.handler.ServeHTTP(recorder, multipartUpload(t, tc.filename, tc.content, tc.fields))
			expectStatus(t, recorder, tc.expectedStatus)
			if tc.expectedStatus != http.StatusOK {
				return
			}
			if summary := decodeBody[importResponse](t, recorder); summary.CreatedCount != tc.expectedCreate {
				t.Fatalf("expected %d created, got %#v", tc.expectedCreate, summary)
			}
		})
	}
}

func TestSyncHandlers(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	orphan := testfixtures.NewEvent(env.group.ID)
	if err := env.store.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		return repos.Events.CreateEvent(ctx, orphan)
	}); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/events", env.event("Paired", "2024-01-20T09:00:00Z", "2024-01-20T10:00:00Z")), http.StatusCreated)

	before := env.do(t, http.MethodGet, "/sync/status", nil)
	expectStatus(t, before, http.StatusOK)
	if status := decodeBody[syncStatusResponse](t, before); status.CalendarEventCount != 2 || status.MissingCount != 1 || status.InSync {
		t.Fatalf("unexpected status %#v", status)
	}

	synced := env.do(t, http.MethodPost, "/sync", nil)
	expectStatus(t, synced, http.StatusOK)
	if summary := decodeBody[syncResponse](t, synced); summary.CreatedCount != 1 || summary.AlreadySyncedCount != 1 {
		t.Fatalf("unexpected sync summary %#v", summary)
	}

	after := env.do(t, http.MethodGet, "/sync/status", nil)
	expectStatus(t, after, http.StatusOK)
	if status := decodeBody[syncStatusResponse](t, after); !status.InSync || status.JournalLessonCount != 2 {
		t.Fatalf("unexpected status %#v", status)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/sync", nil), http.StatusMethodNotAllowed)
}
