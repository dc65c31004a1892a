package middleware

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/jwalitptl/clinic-portal/pkg/validator"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators installs the portal's binding rules on gin's validator
// engine. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(pkgvalidator.JSONFieldName)
		registerErr = pkgvalidator.RegisterRules(v)
	})
	return registerErr
}
