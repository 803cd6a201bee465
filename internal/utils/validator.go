// internal/utils/validator.go
package utils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("filename", validateFilename)
	validate.RegisterValidation("currency", validateCurrency)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateFilename(fl validator.FieldLevel) bool {
	filename := fl.Field().String()

	// Must carry an extension and must not smuggle path segments into the
	// object key.
	if len(filename) < 3 || len(filename) > 255 {
		return false
	}
	if strings.ContainsAny(filename, "/\\") {
		return false
	}
	return filepath.Ext(filename) != ""
}

func validateCurrency(fl validator.FieldLevel) bool {
	currency := fl.Field().String()

	matched, _ := regexp.MatchString("^[a-zA-Z]{3}$", currency)
	return matched
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

// ValidationMessage flattens field errors into one user-facing sentence for
// the error envelope.
func ValidationMessage(err error) string {
	errs := GetValidationErrors(err)
	if len(errs) == 0 {
		return "Input provided was not in the format expected."
	}

	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "uuid4", "uuid":
		return e.Field() + " must be a valid UUID"
	case "filename":
		return e.Field() + " must be a plain filename with an extension"
	case "currency":
		return e.Field() + " must be a 3-letter currency code"
	default:
		return e.Field() + " is invalid"
	}
}
