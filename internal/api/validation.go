package api

import (
	"reflect" // Struct field tags
	"regexp"  // Rule patterns
	"strings" // Tag parsing

	"github.com/gin-gonic/gin/binding"       // Gin's validator engine
	"github.com/go-playground/validator/v10" // Custom rules
)

var (
	slugRule  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	phoneRule = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// RegisterValidators adds the custom binding rules used by request structs
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRule.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	// An empty phone clears the number; use required to forbid that
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		phone := fl.Field().String()
		return phone == "" || phoneRule.MatchString(phone)
	})
}

// describe turns a failed rule into a short message
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " long"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "slug":
		return "must be lowercase words separated by dashes"
	case "phone":
		return "must be in E.164 format"
	case "url", "http_url":
		return "must be a valid URL"
	case "gte", "lte":
		return "is out of range"
	default:
		return "is invalid"
	}
}
