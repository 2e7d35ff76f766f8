package stayAuth

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lowercases an address. Every store lookup goes
// through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

/*
====================================
REQUEST SCHEMAS
====================================
*/

// RegisterRequest is the body of a direct registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,stayemail"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role"`
}

// SignupOTPRequest is the body of an OTP registration request.
type SignupOTPRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,stayemail"`
	Phone         string `json:"phone" validate:"required"`
	Password      string `json:"password" validate:"required,password"`
	Role          string `json:"role"`
	TermsAccepted bool   `json:"termsAccepted" validate:"accepted"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

// LoginRequest carries credentials plus the captcha answer for the login
// purpose.
type LoginRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	CaptchaID   string `json:"captchaId" validate:"captcha"`
	CaptchaText string `json:"captchaText" validate:"captcha"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,password"`
}

// UpdateProfileRequest distinguishes an absent field (nil) from an empty one.
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

/*
====================================
TAG VALIDATION
====================================
*/

// tagOrder ranks failing tags. When several fields fail, the highest
// ranked one decides the message, so clients see missing fields first,
// then terms, captcha, password length and email format.
var tagOrder = []string{"required", "accepted", "captcha", "password", "stayemail"}

// requestValidator runs the struct tags of the request schemas. The
// password tag enforces the configured minimum in characters.
type requestValidator struct {
	validate  *validator.Validate
	minLength int
}

func newRequestValidator(minLength int) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("stayemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(NormalizeEmail(fl.Field().String()))
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) >= minLength
	})
	_ = v.RegisterValidation("accepted", func(fl validator.FieldLevel) bool {
		return fl.Field().Bool()
	})
	_ = v.RegisterValidation("captcha", func(fl validator.FieldLevel) bool {
		return fl.Field().String() != ""
	})

	return &requestValidator{validate: v, minLength: minLength}
}

// check validates req and maps the first failure by tagOrder to a client
// error. required is the message for any missing field.
func (rv *requestValidator) check(req any, required string) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("validate request: %w", err)
	}

	for _, tag := range tagOrder {
		for _, fe := range fields {
			if fe.Tag() != tag {
				continue
			}
			switch tag {
			case "required":
				return invalid("", required)
			case "accepted":
				return invalid(fe.Field(), "Please accept terms and conditions.")
			case "captcha":
				return ErrCaptchaRequired
			case "password":
				return invalid(fe.Field(), fmt.Sprintf("Password must be at least %d characters.", rv.minLength))
			case "stayemail":
				return invalid(fe.Field(), "Enter a valid email.")
			}
		}
	}
	fe := fields[0]
	return invalid(fe.Field(), "Invalid "+fe.Field()+".")
}

/*
====================================
VALIDATED COMMANDS
====================================
*/

type registerCommand struct {
	name     string
	email    string
	password string
	role     Role
}

type signupCommand struct {
	name     string
	email    string
	phone    string
	password string
	role     Role
}

type loginCommand struct {
	email       string
	password    string
	captchaID   string
	captchaText string
}

func (r RegisterRequest) validate(rv *requestValidator) (registerCommand, error) {
	if err := rv.check(r, "Name, email, and password are required."); err != nil {
		return registerCommand{}, err
	}
	return registerCommand{
		name:     strings.TrimSpace(r.Name),
		email:    NormalizeEmail(r.Email),
		password: r.Password,
		role:     signupRole(r.Role),
	}, nil
}

func (r SignupOTPRequest) validate(rv *requestValidator) (signupCommand, error) {
	if err := rv.check(r, "Name, email, phone, and password are required."); err != nil {
		return signupCommand{}, err
	}
	return signupCommand{
		name:     strings.TrimSpace(r.Name),
		email:    NormalizeEmail(r.Email),
		phone:    strings.TrimSpace(r.Phone),
		password: r.Password,
		role:     signupRole(r.Role),
	}, nil
}

func (r VerifyOTPRequest) validate(rv *requestValidator) (email, otp string, err error) {
	if err := rv.check(r, "Email and OTP are required."); err != nil {
		return "", "", err
	}
	return NormalizeEmail(r.Email), strings.TrimSpace(r.OTP), nil
}

// Captcha presence ranks after credentials so the messages come in the
// same order clients already handle.
func (r LoginRequest) validate(rv *requestValidator) (loginCommand, error) {
	if err := rv.check(r, "Email and password are required."); err != nil {
		return loginCommand{}, err
	}
	return loginCommand{
		email:       NormalizeEmail(r.Email),
		password:    r.Password,
		captchaID:   r.CaptchaID,
		captchaText: r.CaptchaText,
	}, nil
}

func (r ResetPasswordRequest) validate(rv *requestValidator) error {
	return rv.check(r, "Token and new password are required.")
}

func (r ChangePasswordRequest) validate(rv *requestValidator) error {
	return rv.check(r, "Current and new password are required.")
}

// toUpdate applies the profile rules: a non-empty name is trimmed and set,
// a present phone is trimmed and set even when it ends up empty.
func (r UpdateProfileRequest) toUpdate() ProfileUpdate {
	var update ProfileUpdate
	if r.Name != nil && *r.Name != "" {
		name := strings.TrimSpace(*r.Name)
		update.Name = &name
	}
	if r.Phone != nil {
		phone := strings.TrimSpace(*r.Phone)
		update.Phone = &phone
	}
	return update
}
