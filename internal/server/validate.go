package server

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/safar/resale-market/internal/phone"
)

var registerOnce sync.Once

// registerValidators adds the "phone" binding tag to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterValidation("phone", validatePhone)
		}
	})
}

func validatePhone(fl validator.FieldLevel) bool {
	_, err := phone.Clean(fl.Field().String())
	return err == nil
}
