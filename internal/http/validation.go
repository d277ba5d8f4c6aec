package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidator checks decoded DTOs before they reach the service. Field
// names in reported errors follow the json tags of the DTO.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return &requestValidator{validate: v}
}

// Struct returns nil when payload is valid, otherwise localized messages keyed
// by json field name. Errors that are not field errors are returned as err.
func (v *requestValidator) Struct(payload any) (map[string]string, error) {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	messages := make(map[string]string, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		field := fieldName(fieldErr)
		if _, exists := messages[field]; exists {
			continue
		}
		messages[field] = tagMessage(fieldErr.Tag(), fieldErr.Param())
	}
	return messages, nil
}

// fieldName drops the top-level struct name from the namespace so nested
// fields read as "weekdays[0]" instead of "seriesRequest.weekdays[0]".
func fieldName(fieldErr validator.FieldError) string {
	namespace := fieldErr.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return fieldErr.Field()
}

func tagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "Поле обязательно для заполнения."
	case "max":
		return "Значение превышает допустимый максимум " + param + "."
	case "min":
		return "Значение меньше допустимого минимума " + param + "."
	case "gtfield":
		return "Значение должно быть больше поля " + param + "."
	case "hexcolor":
		return "Цвет должен быть в формате #rrggbb."
	case "datetime":
		return "Значение должно соответствовать формату " + param + "."
	case "oneof":
		return "Допустимые значения: " + param + "."
	default:
		return "Недопустимое значение (" + tag + ")."
	}
}
