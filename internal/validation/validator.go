// Package validation holds the per-entity input rules. Each Validate*
// function returns the list of violations; an empty list means valid.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/models"
)

// AllowedEmailDomains lists the mail providers accepted at registration.
var AllowedEmailDomains = []string{"gmail.com", "hotmail.com", "yahoo.com", "outlook.com"}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	mustRegister(v, "libemail", func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String())
	})
	mustRegister(v, "libdomain", func(fl validator.FieldLevel) bool {
		return IsAllowedDomain(fl.Field().String())
	})
	mustRegister(v, "libpassword", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String())
	})
	mustRegister(v, "bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

type registration struct {
	FullName string `json:"fullName" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"notblank,max=255,libemail,libdomain"`
	Password string `json:"password" validate:"required,min=8,bcryptlen,libpassword"`
}

type book struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Author      string `json:"author" validate:"notblank,max=100"`
	CategoryID  string `json:"categoryId" validate:"notblank"`
	TotalCopies int    `json:"totalCopies" validate:"min=1"`
}

type category struct {
	Name        string `json:"name" validate:"notblank,max=50"`
	Description string `json:"description" validate:"max=200"`
}

// ValidateRegistration checks a member sign-up. The email is checked after
// trimming, as it is stored trimmed.
func ValidateRegistration(fullName, email, password string) []apperrors.Violation {
	return check(registration{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.TrimSpace(email),
		Password: password,
	})
}

// ValidateBook checks the fields of a create or update book request.
func ValidateBook(req models.BookRequest) []apperrors.Violation {
	return check(book{
		Title:       req.Title,
		Author:      req.Author,
		CategoryID:  req.CategoryID,
		TotalCopies: req.TotalCopies,
	})
}

// ValidateCategory checks the fields of a create or update category request.
func ValidateCategory(req models.CategoryRequest) []apperrors.Violation {
	return check(category{Name: req.Name, Description: req.Description})
}

// ValidateEmail reports whether email has the local@domain.tld shape.
func ValidateEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return emailPattern.MatchString(email)
}

// IsAllowedDomain reports whether the email's domain is on the allow-list.
func IsAllowedDomain(email string) bool {
	if !ValidateEmail(email) {
		return false
	}
	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	for _, allowed := range AllowedEmailDomains {
		if domain == allowed {
			return true
		}
	}
	return false
}

// ValidatePassword enforces at least 8 characters with an upper case letter,
// a lower case letter and a digit, and nothing but letters and digits.
func ValidatePassword(password string) bool {
	if len([]rune(password)) < 8 {
		return false
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
		default:
			return false
		}
	}

	return hasUpper && hasLower && hasDigit
}

func check(s interface{}) []apperrors.Violation {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []apperrors.Violation{{Field: "", Message: err.Error()}}
	}

	violations := make([]apperrors.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, apperrors.Violation{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return violations
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Int {
			return fmt.Sprintf("must be at least %s", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "libemail":
		return "is not a valid email address"
	case "libdomain":
		return "domain not allowed, use one of: " + strings.Join(AllowedEmailDomains, ", ")
	case "bcryptlen":
		return fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)
	case "libpassword":
		return "must contain upper case, lower case and digit characters only, with at least one of each"
	}
	return "is invalid"
}
