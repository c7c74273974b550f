package http

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jmanzanog/instrument-registry/internal/domain"
)

// RegisterValidators adds the instrument_type and currency tags to gin's
// binding engine. It is safe to call more than once.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("instrument_type", validateInstrumentType)
		_ = v.RegisterValidation("currency", validateCurrency)
	}
}

func validateInstrumentType(fl validator.FieldLevel) bool {
	return domain.InstrumentType(fl.Field().String()).IsValid()
}

func validateCurrency(fl validator.FieldLevel) bool {
	return domain.Currency(fl.Field().String()).IsValid()
}
