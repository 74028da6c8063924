package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"healthcare-appointment-server/internal/models"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns gin's binding validator with the appointment rules
// registered, so `binding:"appt_date"` works on request structs.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
			v.SetTagName("binding")
		}
		validate = v
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("appt_date", func(fl validator.FieldLevel) bool {
			return models.ValidDate(fl.Field().String())
		})
		_ = validate.RegisterValidation("appt_time", func(fl validator.FieldLevel) bool {
			return models.ValidTime(fl.Field().String())
		})
	})
	return validate
}

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return Validator().Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, describe(e))
	}
	return strings.Join(messages, ", ")
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", e.Field(), e.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", e.Field())
	case "appt_date":
		return fmt.Sprintf("%s must be formatted YYYY-MM-DD", e.Field())
	case "appt_time":
		return fmt.Sprintf("%s must be formatted HH:MM", e.Field())
	}
	return fmt.Sprintf("%s is invalid", e.Field())
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	Validator()
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			BadRequest(c, "Validation failed: "+FormatValidationError(err))
			return false
		}
		BadRequest(c, "Invalid request payload")
		return false
	}
	return true
}

// BindText reads a body that is either a bare JSON string, as the web client
// sends for single-field updates, or an object. A string is returned as text;
// an object is decoded into obj when obj is non-nil.
func BindText(c *gin.Context, obj interface{}) (string, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return "", err
		}
		return s, nil
	case '{':
		if obj == nil {
			return "", errors.New("expected a string body")
		}
		return "", json.Unmarshal([]byte(trimmed), obj)
	}
	// Plain text bodies are accepted as-is.
	return trimmed, nil
}
