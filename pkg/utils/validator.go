package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// Fleet identifiers are the short stable names devices announce themselves
// with (e.g. "esp-01"). Keep them URL- and topic-safe.
var fleetIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("fleet_id", validateFleetID); err != nil {
		return
	}
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateFleetID(fl validator.FieldLevel) bool {
	return fleetIDPattern.MatchString(fl.Field().String())
}
