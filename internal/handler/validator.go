package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator. Field names
// in errors are the json tags of the request struct.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es obligatorio."
	case "email":
		return "Debe ser un correo válido."
	case "min":
		if fe.Kind() == reflect.String {
			return "Debe tener al menos " + fe.Param() + " caracteres."
		}
		return "Debe ser al menos " + fe.Param() + "."
	case "max":
		if fe.Kind() == reflect.String {
			return "No puede exceder " + fe.Param() + " caracteres."
		}
		return "No puede ser mayor a " + fe.Param() + "."
	case "gt":
		return "Debe ser mayor a " + fe.Param() + "."
	case "url":
		return "Debe ser una URL válida."
	case "oneof":
		return "Debe ser uno de: " + fe.Param() + "."
	case "datetime":
		return "Formato de hora inválido (HH:MM:SS)."
	case "dive":
		return "Contiene valores inválidos."
	}
	return "Valor inválido."
}

// bindAndValidate binds the body and runs the validator. On failure the
// response is already written and the returned error must be returned by
// the handler as is.
func bindAndValidate(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, fail(c, http.StatusBadRequest, "Cuerpo de la solicitud inválido.")
	}
	if err := c.Validate(dst); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return false, fail(c, http.StatusBadRequest, "Cuerpo de la solicitud inválido.")
		}
		fields := make(map[string]string, len(ves))
		for _, fe := range ves {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return false, failWith(c, http.StatusUnprocessableEntity, "Error de validación.", echo.Map{"errores": fields})
	}
	return true, nil
}
