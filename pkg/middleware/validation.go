package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	containerNoRegex = regexp.MustCompile(`^[A-Z]{4}\d{7}$`)
	portCodeRegex    = regexp.MustCompile(`^[A-Z]{5}\d?$`)
)

// InitValidator registers custom validations on gin's binding engine
func InitValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("containerno", func(fl validator.FieldLevel) bool {
		return containerNoRegex.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("portcode", func(fl validator.FieldLevel) bool {
		return portCodeRegex.MatchString(fl.Field().String())
	})
}
