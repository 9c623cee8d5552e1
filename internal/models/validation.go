package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every rejected field in form order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	return v[0].Message
}

// Map returns the errors keyed by field name, as sent to API clients.
func (v ValidationErrors) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, fe := range v {
		m[fe.Field] = fe.Message
	}
	return m
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON/form names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("jewelrytype", func(fl validator.FieldLevel) bool {
		return IsJewelryType(fl.Field().String())
	})
	return v
}

var fieldLabels = map[string]string{
	"fullName":    "Full name",
	"email":       "Email",
	"phone":       "Phone number",
	"jewelryType": "Jewelry type",
	"description": "Description",
	"username":    "Username",
	"password":    "Password",
}

func messageFor(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		if fe.Field() == "jewelryType" {
			return "Please select a jewelry type"
		}
		return label + " is required"
	case "min":
		return label + " must be at least " + fe.Param() + " characters long"
	case "email":
		return "Please enter a valid email address"
	case "jewelrytype":
		return "Jewelry type must be one of " + strings.Join(JewelryTypes, ", ")
	}
	return label + " is invalid"
}

// Struct validates any tagged struct and converts failures to
// ValidationErrors. Non-validation errors are returned unchanged.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

// Normalize trims surrounding whitespace from the text fields.
func (in *OrderInput) Normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.JewelryType = strings.TrimSpace(in.JewelryType)
	in.Description = strings.TrimSpace(in.Description)
}

// Validate checks the order form rules. A non-nil result is always
// ValidationErrors.
func (in OrderInput) Validate() error {
	return Struct(in)
}
