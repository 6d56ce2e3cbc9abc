package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pearquote/quote-service/internal/domain"
)

var (
	// ErrValidation marks a request that decoded but broke a validate tag.
	ErrValidation = errors.New("validation failed")

	// ErrBinding marks a body or query string that could not be decoded.
	ErrBinding = errors.New("binding failed")
)

// customRules are the request-level tags added on top of validator's built-ins.
var customRules = map[string]validator.Func{
	"uuid":        isUUIDOrEmpty,
	"notempty":    isNotBlank,
	"quotestatus": isQuoteStatus,
	"datauri":     isImagePayload,
}

var messages = map[string]string{
	"required":    "this field is required",
	"email":       "must be a valid email address",
	"uuid":        "must be a valid UUID",
	"url":         "must be a valid URL",
	"notempty":    "must not be empty",
	"gte":         "must be greater than or equal to %s",
	"lte":         "must be less than or equal to %s",
	"gt":          "must be greater than %s",
	"lt":          "must be less than %s",
	"oneof":       "must be one of: %s",
	"dive":        "contains an invalid element",
	"quotestatus": "must be one of DRAFT, SENT, WON, LOST",
	"datauri":     "must be a data URI or base64 payload",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		for tag, fn := range customRules {
			if err := validate.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("registering %q validation: %v", tag, err))
			}
		}
	})

	return validate
}

// Validate checks v against its validate tags.
func Validate(v any) error {
	if err := instance().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v, then validates it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// BindQueryAndValidate decodes the query string into v, then validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// ValidationErrors maps each offending field to a readable message.
// It is empty for errors that did not come from the validator.
func ValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return out
	}

	for _, fe := range fieldErrs {
		out[fe.Field()] = describe(fe)
	}

	return out
}

// IsValidationError reports whether err carries field-level validator failures.
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

func describe(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "min", "max":
		bound := "at least"
		if tag == "max" {
			bound = "at most"
		}

		unit := ""
		if fe.Kind() == reflect.String {
			unit = " characters"
		}

		return fmt.Sprintf("must be %s %s%s", bound, fe.Param(), unit)
	default:
		msg, ok := messages[tag]
		if !ok {
			return "failed validation: " + tag
		}

		if strings.Contains(msg, "%s") {
			return fmt.Sprintf(msg, fe.Param())
		}

		return msg
	}
}

// isUUIDOrEmpty leaves presence to "required".
func isUUIDOrEmpty(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}

	return uuid.Validate(value) == nil
}

func isNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// isQuoteStatus accepts any letter case.
func isQuoteStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}

	_, err := domain.ParseQuoteStatus(value)

	return err == nil
}

// isImagePayload only checks the shape; decoding happens in the AI service.
func isImagePayload(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())

	switch {
	case value == "":
		return false
	case strings.HasPrefix(value, "data:"):
		return strings.Contains(value, ",")
	default:
		return !strings.ContainsAny(value, " \t")
	}
}
