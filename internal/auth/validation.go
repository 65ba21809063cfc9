package auth

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SignupRequest is the signup form
type SignupRequest struct {
	Name            string `form:"name" validate:"required,min=2"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=Password"`
	Terms           bool   `form:"terms" validate:"required"`
}

// LoginRequest is the login form
type LoginRequest struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Remember bool   `form:"remember"`
}

// signupMessages maps form field and failed rule to the message shown
var signupMessages = map[string]string{
	"name.required":            "Name is required",
	"name.min":                 "Name must be at least 2 characters",
	"email.required":           "Email is required",
	"email.email":              "Invalid email format",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 6 characters",
	"confirm_password.eqfield": "Passwords do not match",
	"terms.required":           "You must agree to the terms and conditions",
}

// FormValidator validates auth forms with go-playground/validator
type FormValidator struct {
	validate *validator.Validate
}

// NewFormValidator creates a FormValidator that reports form field names
func NewFormValidator() *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &FormValidator{validate: v}
}

// ValidateSignup trims the form and returns every violation at once
func (v *FormValidator) ValidateSignup(req *SignupRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := signupMessages[fe.Field()+"."+fe.Tag()]; ok {
			messages = append(messages, msg)
		}
	}
	return &ValidationError{Messages: messages}
}

// ValidateLogin trims the email and checks presence then format
func (v *FormValidator) ValidateLogin(req *LoginRequest) error {
	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" || req.Password == "" {
		return &ValidationError{Messages: []string{MsgLoginRequired}}
	}
	if err := v.validate.Var(req.Email, "email"); err != nil {
		return &ValidationError{Messages: []string{MsgInvalidEmail}}
	}
	return nil
}
