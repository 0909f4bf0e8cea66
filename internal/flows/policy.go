package flows

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	passwordvalidator "github.com/wagslane/go-password-validator"
)

// PasswordPolicy is the complexity rule applied at registration and reset.
type PasswordPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	MinEntropyBits float64
}

// DefaultPasswordPolicy is 8–128 characters with upper, lower and digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:    8,
		MaxLength:    128,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Check returns a user-facing reason when pw violates the policy, or "".
func (p PasswordPolicy) Check(pw string) string {
	n := utf8.RuneCountInString(pw)
	if n < p.MinLength {
		return "Password must be at least " + strconv.Itoa(p.MinLength) + " characters"
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return "Password must be at most " + strconv.Itoa(p.MaxLength) + " characters"
	}

	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case p.RequireUpper && !upper:
		return "Password must contain at least one uppercase letter"
	case p.RequireLower && !lower:
		return "Password must contain at least one lowercase letter"
	case p.RequireDigit && !digit:
		return "Password must contain at least one number"
	}

	if p.MinEntropyBits > 0 {
		if err := passwordvalidator.Validate(pw, p.MinEntropyBits); err != nil {
			return err.Error()
		}
	}
	return ""
}

const (
	maxEmailLength = 255
	maxNameLength  = 100
)

// Validator checks registration and reset input.
type Validator struct {
	v      *validator.Validate
	policy PasswordPolicy
}

// NewValidator returns a Validator enforcing policy.
func NewValidator(policy PasswordPolicy) *Validator {
	return &Validator{v: validator.New(), policy: policy}
}

// Email returns a reason when email is not an acceptable address.
func (v *Validator) Email(email string) string {
	if email == "" {
		return "Email is required"
	}
	if len(email) > maxEmailLength {
		return "Email must be at most 255 characters"
	}
	if err := v.v.Var(email, "email"); err != nil {
		return "Invalid email address"
	}
	return ""
}

// Name returns a reason when name is missing or too long after trimming.
func (v *Validator) Name(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Name is required"
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "Name must be at most 100 characters"
	}
	return ""
}

// Password applies the password policy.
func (v *Validator) Password(pw string) string {
	return v.policy.Check(pw)
}

// Registration validates all three fields and returns per-field reasons.
// The email is expected to be normalized already.
func (v *Validator) Registration(email, password, name string) map[string]string {
	fields := map[string]string{}
	if msg := v.Email(email); msg != "" {
		fields["email"] = msg
	}
	if msg := v.Password(password); msg != "" {
		fields["password"] = msg
	}
	if msg := v.Name(name); msg != "" {
		fields["name"] = msg
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
