package v1

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wardflow/wardflow/internal/domain/admission"
)

// RegisterValidations installs custom rules on gin's binding engine.
// "iddoc" accepts only known identity-document types.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("iddoc", func(fl validator.FieldLevel) bool {
			return admission.IdentityDocType(fl.Field().String()).IsValid()
		})
	}
}
