package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/application"
)

const rfc3339Layout = "2006-01-02T15:04:05Z07:00"

type eventService interface {
	CreateEvent(ctx context.Context, ownerID string, input application.EventInput) (application.EventResult, error)
	UpdateEvent(ctx context.Context, ownerID, eventID string, input application.EventInput) (application.EventResult, error)
	DeleteEvent(ctx context.Context, ownerID, eventID string) (application.DeleteResult, error)
	GetEvent(ctx context.Context, ownerID, eventID string) (application.Event, error)
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
	CreateRecurringSeries(ctx context.Context, ownerID string, input application.SeriesInput) (application.SeriesSummary, error)
	FindConflicts(ctx context.Context, ownerID string) ([]application.ConflictReport, error)
	FindFreeSlots(ctx context.Context, query application.FreeSlotQuery) ([]application.FreeSlot, error)
}

// EventHandler serves calendar events and the scheduling queries built on them.
type EventHandler struct {
	service   eventService
	responder responder
	validator *requestValidator
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service:   service,
		responder: newResponder(logger),
		validator: newRequestValidator(),
		logger:    logger,
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	result, err := h.service.CreateEvent(r.Context(), ownerID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "EventHandler", "Create", "event_id", result.Event.ID).
		DebugContext(r.Context(), "event created", "lesson_created", result.LessonCreated)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventResultDTO(result))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), ownerID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	result, err := h.service.UpdateEvent(r.Context(), ownerID, eventID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventResultDTO(result))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	result, err := h.service.DeleteEvent(r.Context(), ownerID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, deleteEventResponse{
		EventID:           result.EventID,
		LessonID:          result.LessonID,
		AttendanceRemoved: result.AttendanceRemoved,
	})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	params, fields := buildListParams(r.URL.Query(), ownerID)
	if len(fields) > 0 {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	events, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req seriesRequest
	if !h.decode(w, r, &req) {
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	summary, err := h.service.CreateRecurringSeries(r.Context(), ownerID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, seriesResponse{
		CreatedCount: summary.CreatedCount,
		SkippedCount: summary.SkippedCount,
		Events:       toEventDTOs(summary.Events),
	})
}

func (h *EventHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	conflicts, err := h.service.FindConflicts(r.Context(), ownerID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := conflictsResponse{Conflicts: make([]conflictDTO, 0, len(conflicts))}
	for _, c := range conflicts {
		response.Conflicts = append(response.Conflicts, conflictDTO{
			EventA:         c.EventA,
			EventB:         c.EventB,
			TitleA:         c.TitleA,
			TitleB:         c.TitleB,
			OverlapMinutes: c.OverlapMinutes,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

func (h *EventHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	query, fields := buildFreeSlotQuery(r.URL.Query(), ownerID)
	if len(fields) > 0 {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	slots, err := h.service.FindFreeSlots(r.Context(), query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := freeSlotsResponse{Slots: make([]freeSlotDTO, 0, len(slots))}
	for _, slot := range slots {
		response.Slots = append(response.Slots, freeSlotDTO{
			Day:   slot.Day,
			Time:  slot.Time,
			Date:  slot.Date,
			Start: formatTime(slot.Start),
			End:   formatTime(slot.End),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// decode reads a JSON body into dst and runs struct validation. It writes the
// error response itself and reports whether the handler may continue.
func (h *EventHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeJSON(w, r, h.responder, h.validator, dst)
}

func (h *EventHandler) eventID(w http.ResponseWriter, r *http.Request) (string, bool) {
	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" || strings.Contains(eventID, "/") {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return "", false
	}
	return eventID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, resp responder, v *requestValidator, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		resp.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	fields, err := v.Struct(dst)
	if err != nil {
		resp.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	if len(fields) > 0 {
		resp.writeValidation(r.Context(), w, fields)
		return false
	}
	return true
}

func buildListParams(values url.Values, ownerID string) (application.ListEventsParams, map[string]string) {
	params := application.ListEventsParams{OwnerID: ownerID}
	fields := map[string]string{}

	if raw := strings.TrimSpace(values.Get("from")); raw != "" {
		if ts := parseTime(raw); !ts.IsZero() {
			params.From = &ts
		} else {
			fields["from"] = tagMessage("datetime", rfc3339Layout)
		}
	}
	if raw := strings.TrimSpace(values.Get("to")); raw != "" {
		if ts := parseTime(raw); !ts.IsZero() {
			params.To = &ts
		} else {
			fields["to"] = tagMessage("datetime", rfc3339Layout)
		}
	}
	return params, fields
}

func buildFreeSlotQuery(values url.Values, ownerID string) (application.FreeSlotQuery, map[string]string) {
	query := application.FreeSlotQuery{OwnerID: ownerID}
	fields := map[string]string{}

	minutes, err := strconv.Atoi(strings.TrimSpace(values.Get("duration")))
	switch {
	case values.Get("duration") == "":
		fields["duration"] = tagMessage("required", "")
	case err != nil || minutes <= 0:
		fields["duration"] = tagMessage("min", "1")
	default:
		query.Duration = time.Duration(minutes) * time.Minute
	}

	if raw := strings.TrimSpace(values.Get("days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			fields["days"] = tagMessage("min", "0")
		} else {
			query.Days = days
		}
	}

	if raw := strings.TrimSpace(values.Get("preferred_days")); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			day, ok := parseWeekday(name)
			if !ok {
				fields["preferred_days"] = tagMessage("oneof", "Monday..Sunday")
				break
			}
			query.PreferredDays = append(query.PreferredDays, day)
		}
	}
	return query, fields
}

func parseWeekday(value string) (time.Weekday, bool) {
	value = strings.TrimSpace(value)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.EqualFold(day.String(), value) {
			return day, true
		}
	}
	return 0, false
}

type eventRequest struct {
	GroupID     string  `json:"group_id" validate:"required"`
	Title       string  `json:"title" validate:"required,max=200"`
	Start       string  `json:"start" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	End         string  `json:"end" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Room        *string `json:"room"`
	Color       string  `json:"color" validate:"omitempty,hexcolor"`
	IsEvent     bool    `json:"is_event"`
	Description *string `json:"description"`
	EventType   *string `json:"event_type"`
}

func (r eventRequest) toInput() application.EventInput {
	return application.EventInput{
		GroupID:     strings.TrimSpace(r.GroupID),
		Title:       strings.TrimSpace(r.Title),
		Start:       parseTime(r.Start),
		End:         parseTime(r.End),
		Room:        r.Room,
		Color:       strings.TrimSpace(r.Color),
		IsEvent:     r.IsEvent,
		Description: r.Description,
		EventType:   r.EventType,
	}
}

type seriesRequest struct {
	GroupID   string  `json:"group_id" validate:"required"`
	Title     string  `json:"title" validate:"required,max=200"`
	Room      *string `json:"room"`
	From      string  `json:"from" validate:"required,datetime=2006-01-02"`
	To        string  `json:"to" validate:"required,datetime=2006-01-02"`
	Weekdays  []int   `json:"weekdays" validate:"required,min=1,dive,min=1,max=7"`
	StartTime string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string  `json:"end_time" validate:"required,datetime=15:04"`
}

func (r seriesRequest) toInput() application.SeriesInput {
	return application.SeriesInput{
		GroupID:   strings.TrimSpace(r.GroupID),
		Title:     strings.TrimSpace(r.Title),
		Room:      r.Room,
		From:      parseDate(r.From),
		To:        parseDate(r.To),
		Weekdays:  append([]int(nil), r.Weekdays...),
		StartTime: strings.TrimSpace(r.StartTime),
		EndTime:   strings.TrimSpace(r.EndTime),
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

func parseDate(value string) time.Time {
	ts, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return ts
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339)
}

type eventDTO struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	GroupID     string  `json:"group_id"`
	Title       string  `json:"title"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Room        *string `json:"room,omitempty"`
	Color       string  `json:"color"`
	IsEvent     bool    `json:"is_event"`
	Description *string `json:"description,omitempty"`
	EventType   *string `json:"event_type,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type eventResultDTO struct {
	Event         eventDTO `json:"event"`
	LessonID      string   `json:"lesson_id,omitempty"`
	LessonCreated bool     `json:"lesson_created"`
}

type deleteEventResponse struct {
	EventID           string `json:"event_id"`
	LessonID          string `json:"lesson_id,omitempty"`
	AttendanceRemoved int    `json:"attendance_removed"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type seriesResponse struct {
	CreatedCount int        `json:"created_count"`
	SkippedCount int        `json:"skipped_count"`
	Events       []eventDTO `json:"events"`
}

type conflictDTO struct {
	EventA         string `json:"event_a"`
	EventB         string `json:"event_b"`
	TitleA         string `json:"title_a"`
	TitleB         string `json:"title_b"`
	OverlapMinutes int    `json:"overlap_minutes"`
}

type conflictsResponse struct {
	Conflicts []conflictDTO `json:"conflicts"`
}

type freeSlotDTO struct {
	Day   string `json:"day"`
	Time  string `json:"time"`
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type freeSlotsResponse struct {
	Slots []freeSlotDTO `json:"slots"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:          event.ID,
		OwnerID:     event.OwnerID,
		GroupID:     event.GroupID,
		Title:       event.Title,
		Start:       formatTime(event.Start),
		End:         formatTime(event.End),
		Room:        event.Room,
		Color:       event.Color,
		IsEvent:     event.IsEvent,
		Description: event.Description,
		EventType:   event.EventType,
		CreatedAt:   formatTime(event.CreatedAt),
		UpdatedAt:   formatTime(event.UpdatedAt),
	}
}

func toEventDTOs(events []application.Event) []eventDTO {
	dtos := make([]eventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	return dtos
}

func toEventResultDTO(result application.EventResult) eventResultDTO {
	return eventResultDTO{
		Event:         toEventDTO(result.Event),
		LessonID:      result.LessonID,
		LessonCreated: result.LessonCreated,
	}
}
