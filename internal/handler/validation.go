package handler

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9]{2,10}$`)

// validTicker accepts short alphanumeric ticker symbols (BTC, DOGE, ...)
func validTicker(fl validator.FieldLevel) bool {
	return tickerPattern.MatchString(fl.Field().String())
}

// RegisterValidations installs custom binding validations used by the
// request DTOs. Call once at startup.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("ticker", validTicker)
	}
}
