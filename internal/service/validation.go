package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"visitethiopia/api/internal/apperror"
	"visitethiopia/api/internal/models"
)

type passwordPair struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (p passwordPair) validate(minLength int) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Password,
			validation.Required.Error("Please provide a password"),
			validation.RuneLength(minLength, 0).Error("Password must be at least {{.min}} characters long"),
		),
		validation.Field(&p.PasswordConfirm,
			validation.Required.Error("Please confirm your password"),
			validation.By(equals(p.Password, "Passwords do not match")),
		),
	)
}

func (in SignupInput) validate(minLength int) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required.Error("Please tell us your first name"), validation.RuneLength(1, 100)),
		validation.Field(&in.LastName, validation.Required.Error("Please tell us your last name"), validation.RuneLength(1, 100)),
		validation.Field(&in.Email, validation.Required.Error("Please provide your email"), is.EmailFormat.Error("Please provide a valid email")),
		validation.Field(&in.Role, validation.In(string(models.UserRoleUser), string(models.UserRoleGuide)).Error("Role must be either user or guide")),
	)
	return mergeValidation(err, passwordPair{Password: in.Password, PasswordConfirm: in.PasswordConfirm}.validate(minLength))
}

func (in ProfileInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.NilOrNotEmpty.Error("First name cannot be empty"), validation.RuneLength(1, 100)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty.Error("Last name cannot be empty"), validation.RuneLength(1, 100)),
		validation.Field(&in.Email, validation.NilOrNotEmpty.Error("Email cannot be empty"), is.EmailFormat.Error("Please provide a valid email")),
	)
}

func equals(expected string, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

func mergeValidation(errs ...error) error {
	merged := validation.Errors{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve validation.Errors
		if !errors.As(err, &ve) {
			return err
		}
		for k, v := range ve {
			merged[k] = v
		}
	}
	return merged.Filter()
}

// asValidationError turns ozzo errors into a single caller-facing message,
// ordered by field name so responses are stable.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var ve validation.Errors
	if !errors.As(err, &ve) {
		return apperror.Internal(err, msgInternal)
	}

	keys := make([]string, 0, len(ve))
	for k := range ve {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, ve[k].Error())
	}
	return apperror.Validation(strings.Join(msgs, ". "))
}
