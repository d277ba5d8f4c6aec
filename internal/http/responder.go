package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dimasikck/teacher-tool/internal/application"
)

var (
	errBadRequestBody  = errors.New("Некорректный формат запроса.")
	errInvalidEventID  = errors.New("Некорректный идентификатор события.")
	errMissingOwner    = errors.New("Не указан преподаватель (заголовок X-Owner-ID).")
	errMissingFile     = errors.New("Не передан файл расписания.")
	errUnreadableFile  = errors.New("Не удалось прочитать файл расписания.")
	errFileTooLarge    = errors.New("Файл расписания слишком большой.")
	errSheetNotPresent = errors.New("Лист с расписанием не найден.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// writeValidation answers 422 with per-field messages.
func (r responder) writeValidation(ctx context.Context, w http.ResponseWriter, fields map[string]string) {
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "VALIDATION_FAILED",
		Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
		Errors:    fields,
	})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   localizedStatusMessage(http.StatusConflict),
		})
	case errors.Is(err, context.Canceled):
		r.loggerFor(ctx).WarnContext(ctx, "request canceled", "error", err)
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: localizedStatusMessage(http.StatusServiceUnavailable)})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeValidation(ctx, w, localizeValidationErrors(vErr))
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Некорректный запрос."
	case http.StatusUnauthorized:
		return "Требуется авторизация."
	case http.StatusNotFound:
		return "Запрошенный ресурс не найден."
	case http.StatusConflict:
		return "Запись уже существует."
	case http.StatusRequestEntityTooLarge:
		return "Слишком большой запрос."
	case http.StatusUnprocessableEntity:
		return "Ошибка в введённых данных."
	case http.StatusServiceUnavailable:
		return "Запрос был прерван."
	default:
		return "Внутренняя ошибка сервера."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "owner is required":
		return "Не указан преподаватель."
	case "title is required":
		return "Укажите название занятия."
	case "group is required":
		return "Укажите группу."
	case "group not found", "group does not exist":
		return "Группа не найдена."
	case "start is required":
		return "Укажите время начала."
	case "end is required":
		return "Укажите время окончания."
	case "end must be after start":
		return "Время окончания должно быть позже времени начала."
	case "color must be a #rrggbb value":
		return "Цвет должен быть в формате #rrggbb."
	case "to must not be before from":
		return "Конец периода не может быть раньше начала."
	case "duration must be positive":
		return "Длительность должна быть положительной."
	case "days must not be negative":
		return "Количество дней не может быть отрицательным."
	case "start row must not be negative":
		return "Номер первой строки не может быть отрицательным."
	case "start time must look like HH:MM":
		return "Время начала должно быть в формате ЧЧ:ММ."
	case "end time must look like HH:MM":
		return "Время окончания должно быть в формате ЧЧ:ММ."
	case "date range is required":
		return "Укажите период повторения."
	case "from is after to":
		return "Начало периода позже его конца."
	case "weekday set is empty":
		return "Выберите хотя бы один день недели."
	case "time of day is out of range":
		return "Время суток вне допустимого диапазона."
	case "end time is not after start time":
		return "Время окончания должно быть позже времени начала."
	default:
		if strings.HasPrefix(message, "timetable: column for ") {
			return "Номер столбца не может быть отрицательным: " + strings.TrimSuffix(strings.TrimPrefix(message, "timetable: column for "), " must not be negative")
		}
		if strings.HasPrefix(message, "weekday ") {
			return "День недели должен быть от 1 до 7."
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
