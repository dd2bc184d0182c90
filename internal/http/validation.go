package http

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// RegisterValidators agrega las reglas propias al validador de gin.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not validator/v10")
	}
	return v.RegisterValidation("phone", validatePhone)
}

// validatePhone acepta numeros con prefijo + opcional; los espacios se ignoran.
func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(strings.Join(strings.Fields(fl.Field().String()), ""))
}
