package users

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type CreateUserRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Role                 string `json:"role" validate:"required,max=50"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type UpdateUserRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Role                 string `json:"role" validate:"required,max=50"`
	Password             string `json:"password" validate:"omitempty,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
}

// NewValidator builds a validator that reports fields by their json names so
// violations map straight onto form fields.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationMessages flattens validator violations into the field->message
// mapping the form layer displays.
func ValidationMessages(err error) map[string]string {
	messages := make(map[string]string)
	violations, ok := err.(validator.ValidationErrors)
	if !ok {
		messages["general"] = "Invalid input."
		return messages
	}
	for _, violation := range violations {
		field := violation.Field()
		switch violation.Tag() {
		case "required":
			messages[field] = "The " + field + " field is required."
		case "email":
			messages[field] = "The " + field + " must be a valid email address."
		case "max":
			messages[field] = "The " + field + " may not be greater than " + violation.Param() + " characters."
		case "min":
			messages[field] = "The " + field + " must be at least " + violation.Param() + " characters."
		case "eqfield":
			messages[field] = "The " + field + " does not match."
		default:
			messages[field] = "The " + field + " is invalid."
		}
	}
	return messages
}
