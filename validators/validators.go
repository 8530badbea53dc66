package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their json/form name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form", "query", "params"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	return v
}

// Struct validates dto and returns a field → message map, or nil.
func Struct(dto interface{}) map[string]string {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required!", fe.Field())
	case "email":
		return "Invalid email!"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long!", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long!", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long!", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric!", fe.Field())
	case "nocontrol":
		return fmt.Sprintf("%s must not contain control characters!", fe.Field())
	case "eth_addr":
		return "Invalid wallet address!"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid!", fe.Field())
	}
}
