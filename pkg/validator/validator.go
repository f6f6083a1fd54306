package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	apperrors "github.com/PratikKhaire/100x-n8n/pkg/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// CronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @every 5m.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation("node_type", validateNodeType)
		_ = validate.RegisterValidation("cron", validateCron)
	})
	return validate
}

// Validate validates a struct and converts failures into a single
// validation AppError listing every offending field.
func Validate(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatValidationError(fe))
	}

	return apperrors.NewValidationError("validation failed").
		WithDetails(strings.Join(messages, ", "))
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return instance().Var(field, tag)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s items or characters", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s items or characters", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, err.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "node_type":
		return fmt.Sprintf("%s must be an identifier made of letters, digits, '-' or '_'", field)
	case "cron":
		return fmt.Sprintf("%s must be a valid cron expression", field)
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, err.Tag())
	}
}

// validateNodeType accepts type tags like "start", "httpRequest" or "http-request".
func validateNodeType(fl validator.FieldLevel) bool {
	nodeType := fl.Field().String()
	if nodeType == "" || len(nodeType) > 64 {
		return false
	}
	for _, r := range nodeType {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := CronParser.Parse(fl.Field().String())
	return err == nil
}
