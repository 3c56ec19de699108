package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yeremiapane/qr-restaurant/utils"
)

var validate = validator.New()

// validateInput runs struct tags and turns failures into an INVALID_INPUT AppError.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return utils.WrapAppError(utils.CodeInvalidInput, "invalid input", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return utils.WrapAppError(utils.CodeInvalidInput, "invalid input: "+strings.Join(fields, "; "), err).
		WithDetail("fields", fields)
}
