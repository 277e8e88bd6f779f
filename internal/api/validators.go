package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom binding tags used by the request structs:
// "objectid" for hex ObjectIDs and "otpcode" for numeric verification codes.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		})
		_ = v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if len(s) < 4 || len(s) > 10 {
				return false
			}
			for _, r := range s {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		})
	})
}
