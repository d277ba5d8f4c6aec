package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Dimasikck/teacher-tool/internal/application"
	"github.com/Dimasikck/teacher-tool/internal/timetable"
)

// MaxUploadBytes bounds a timetable upload.
const MaxUploadBytes = 10 << 20

type importService interface {
	BulkImport(ctx context.Context, req application.ImportRequest) (application.ImportSummary, error)
}

// ImportHandler accepts timetables either as decoded rows or as an uploaded
// workbook.
type ImportHandler struct {
	service   importService
	responder responder
	validator *requestValidator
	logger    *slog.Logger
}

func NewImportHandler(service importService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		service:   service,
		responder: newResponder(logger),
		validator: newRequestValidator(),
		logger:    logger,
	}
}

// ImportRows handles POST /imports.
func (h *ImportHandler) ImportRows(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	var req importRowsRequest
	if !decodeJSON(w, r, h.responder, h.validator, &req) {
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	h.run(w, r, application.ImportRequest{
		OwnerID:  ownerID,
		Rows:     req.Rows,
		Mapping:  req.Mapping.toMapping(),
		StartRow: req.StartRow,
	})
}

// ImportWorkbook handles POST /imports/workbook. The multipart form carries
// the file plus the column mapping as plain fields.
func (h *ImportHandler) ImportWorkbook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.responder.writeError(r.Context(), w, http.StatusRequestEntityTooLarge, errFileTooLarge)
			return
		}
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	form := workbookForm{
		Sheet:       strings.TrimSpace(r.FormValue("sheet")),
		TitleColumn: r.FormValue("title_column"),
		GroupColumn: r.FormValue("group_column"),
		DateColumn:  r.FormValue("date_column"),
		TimeColumn:  r.FormValue("time_column"),
		RoomColumn:  r.FormValue("room_column"),
		StartRow:    r.FormValue("start_row"),
	}
	fields, err := h.validator.Struct(form)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if len(fields) > 0 {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingFile)
		return
	}
	defer file.Close()

	rows, err := readTimetable(file, header.Filename, form.Sheet)
	if err != nil {
		handlerLogger(r.Context(), h.logger, "ImportHandler", "ImportWorkbook", "filename", header.Filename).
			WarnContext(r.Context(), "failed to read timetable", "error", err)
		if errors.Is(err, timetable.ErrSheetNotFound) {
			h.responder.writeError(r.Context(), w, http.StatusUnprocessableEntity, errSheetNotPresent)
			return
		}
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnreadableFile)
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	h.run(w, r, application.ImportRequest{
		OwnerID:  ownerID,
		Rows:     rows,
		Mapping:  form.mapping(),
		StartRow: atoiOrZero(form.StartRow),
	})
}

func (h *ImportHandler) run(w http.ResponseWriter, r *http.Request, req application.ImportRequest) {
	summary, err := h.service.BulkImport(r.Context(), req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := importResponse{
		CreatedCount:   summary.CreatedCount,
		DuplicateCount: summary.DuplicateCount,
		SkippedRows:    summary.SkippedRows,
		GroupsCreated:  summary.GroupsCreated,
		Lessons:        summary.Lessons,
	}
	if response.SkippedRows == nil {
		response.SkippedRows = []timetable.RowIssue{}
	}
	if response.GroupsCreated == nil {
		response.GroupsCreated = []string{}
	}
	if response.Lessons == nil {
		response.Lessons = []string{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// readTimetable picks the decoder by file extension; anything that is not a
// .csv file is treated as a workbook.
func readTimetable(r io.Reader, filename, sheet string) ([][]any, error) {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return timetable.ReadCSV(r)
	}
	return timetable.ReadWorkbook(r, sheet)
}

func atoiOrZero(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

type columnMappingDTO struct {
	Title *int `json:"title" validate:"required,min=0"`
	Group *int `json:"group" validate:"required,min=0"`
	Date  *int `json:"date" validate:"required,min=0"`
	Time  *int `json:"time" validate:"required,min=0"`
	Room  *int `json:"room" validate:"omitempty,min=0"`
}

func (m columnMappingDTO) toMapping() timetable.ColumnMapping {
	return timetable.ColumnMapping{
		Title: derefInt(m.Title),
		Group: derefInt(m.Group),
		Date:  derefInt(m.Date),
		Time:  derefInt(m.Time),
		Room:  m.Room,
	}
}

type importRowsRequest struct {
	Rows     [][]any          `json:"rows" validate:"required,min=1"`
	Mapping  columnMappingDTO `json:"mapping"`
	StartRow int              `json:"start_row" validate:"min=0"`
}

type workbookForm struct {
	Sheet       string `json:"sheet"`
	TitleColumn string `json:"title_column" validate:"required,number"`
	GroupColumn string `json:"group_column" validate:"required,number"`
	DateColumn  string `json:"date_column" validate:"required,number"`
	TimeColumn  string `json:"time_column" validate:"required,number"`
	RoomColumn  string `json:"room_column" validate:"omitempty,number"`
	StartRow    string `json:"start_row" validate:"omitempty,number"`
}

func (f workbookForm) mapping() timetable.ColumnMapping {
	mapping := timetable.ColumnMapping{
		Title: atoiOrZero(f.TitleColumn),
		Group: atoiOrZero(f.GroupColumn),
		Date:  atoiOrZero(f.DateColumn),
		Time:  atoiOrZero(f.TimeColumn),
	}
	if strings.TrimSpace(f.RoomColumn) != "" {
		room := atoiOrZero(f.RoomColumn)
		mapping.Room = &room
	}
	return mapping
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

type importResponse struct {
	CreatedCount   int                  `json:"created_count"`
	DuplicateCount int                  `json:"duplicate_count"`
	SkippedRows    []timetable.RowIssue `json:"skipped_rows"`
	GroupsCreated  []string             `json:"groups_created"`
	Lessons        []string             `json:"lessons"`
}
