package server

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aioptimizer/frontend/internal/auth"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerValidators adds the custom form rules to gin's validator
func registerValidators() error {
	registerOnce.Do(func() {
		validate, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}

		registerErr = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return auth.StrongPassword(fl.Field().String())
		})
	})
	return registerErr
}
