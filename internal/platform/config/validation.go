package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their koanf keys so messages match the YAML files.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("koanf"); name != "" {
			return name
		}

		return f.Name
	})

	return v
}

// Validate rejects a configuration the service cannot start with.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}

		for _, fe := range fieldErrs {
			problems = append(problems, describeField(fe))
		}
	}

	if c.Auth.Mode == "jwt" && c.Auth.JWT.Secret == "" {
		problems = append(problems, "auth.jwt.secret is required when auth.mode is jwt")
	}

	if c.App.Environment == "prod" && c.Database.Driver == "sqlite" {
		problems = append(problems, "database.driver sqlite is not allowed in prod")
	}

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(problems, "\n  "))
}

func describeField(fe validator.FieldError) string {
	// Namespace starts with the root type name.
	_, key, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		field, value, _ := strings.Cut(fe.Param(), " ")
		return fmt.Sprintf("%s is required when %s is %s", key, snake(field), value)
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "url":
		return key + " must be a valid URL"
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", key, snake(fe.Param()))
	default:
		return fmt.Sprintf("%s failed validation: %s", key, fe.Tag())
	}
}

// snake turns a Go field name such as MaxMonths into its koanf key max_months.
func snake(name string) string {
	var b strings.Builder

	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}

			r = unicode.ToLower(r)
		}

		b.WriteRune(r)
	}

	return b.String()
}
