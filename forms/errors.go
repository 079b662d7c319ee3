package forms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MsgRequired      = "This field is required."
	MsgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	MsgInvalidImage  = "uploaded file is corrupted or not an image"
)

// Errors collects messages per form field.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Get returns the messages for one field, for templates.
func (e Errors) Get(field string) []string {
	return e[field]
}

// addBindingErrors turns gin binding failures into field errors. Field names are the
// lower-cased struct field names, which match the form keys used here.
func (e Errors) addBindingErrors(err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		e.Add("__all__", err.Error())
		return
	}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			e.Add(field, MsgRequired)
		case "email":
			e.Add(field, "Enter a valid email address.")
		case "min":
			e.Add(field, fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param()))
		case "max":
			e.Add(field, fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param()))
		default:
			e.Add(field, "Enter a valid value.")
		}
	}
}
