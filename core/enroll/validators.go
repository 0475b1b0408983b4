package enroll

import (
	validatorlib "github.com/go-playground/validator/v10"
)

var validate *validatorlib.Validate

// InitValidators wires the shared validator instance into this package.
func InitValidators(v *validatorlib.Validate) {
	validate = v
}
