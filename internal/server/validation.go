package server

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
)

var registerValidators sync.Once

// setupValidators adds the custom binding tags used by request structs.
func setupValidators() {
	registerValidators.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("referral_code", func(fl validator.FieldLevel) bool {
			return attributiondomain.Canonicalize(fl.Field().String()) != ""
		})
	})
}
