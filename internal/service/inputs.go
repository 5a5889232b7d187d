package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/timber-social/timber-backend/internal/security"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type RegisterInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	fields := map[string]string{}
	switch n := len([]rune(in.Name)); {
	case n == 0:
		fields["name"] = "Name is required"
	case n > maxNameRunes:
		fields["name"] = "Name must be at most 50 characters"
	}
	switch n := len(in.Username); {
	case n < 3:
		fields["username"] = "Username must be at least 3 characters"
	case n > 30:
		fields["username"] = "Username must be at most 30 characters"
	case !usernamePattern.MatchString(in.Username):
		fields["username"] = "Username can only contain letters, numbers, underscores and hyphens"
	}
	checkEmail(fields, in.Email)
	if msg := passwordProblem(in.Password); msg != "" {
		fields["password"] = msg
	}
	return fieldsErr(fields)
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *LoginInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	fields := map[string]string{}
	checkEmail(fields, in.Email)
	if in.Password == "" {
		fields["password"] = "Password is required"
	}
	return fieldsErr(fields)
}

type EmailInput struct {
	Email string `json:"email"`
}

func (in *EmailInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	fields := map[string]string{}
	checkEmail(fields, in.Email)
	return fieldsErr(fields)
}

type CodeInput struct {
	Email string `json:"email"`
	Code  string `json:"verificationCode"`
}

func (in *CodeInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	fields := map[string]string{}
	checkEmail(fields, in.Email)
	checkCode(fields, in.Code)
	return fieldsErr(fields)
}

type ResetPasswordInput struct {
	Email       string `json:"email"`
	Code        string `json:"verificationCode"`
	NewPassword string `json:"newPassword"`
}

func (in *ResetPasswordInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	fields := map[string]string{}
	checkEmail(fields, in.Email)
	checkCode(fields, in.Code)
	switch {
	case len(in.NewPassword) < 6:
		fields["newPassword"] = "Password must be at least 6 characters"
	case len(in.NewPassword) > security.MaxPasswordBytes:
		fields["newPassword"] = "Password is too long"
	}
	return fieldsErr(fields)
}

func checkEmail(fields map[string]string, email string) {
	if email == "" {
		fields["email"] = "Email is required"
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		fields["email"] = "Invalid email address"
	}
}

func checkCode(fields map[string]string, code string) {
	if len(code) != 6 {
		fields["verificationCode"] = "Verification code must be exactly 6 digits"
	}
}

const (
	maxNameRunes     = 50
	maxBioRunes      = 500
	maxInterests     = 20
	maxInterestRunes = 50
)

// ProfileUpdateInput is a partial profile change; nil fields are untouched.
type ProfileUpdateInput struct {
	Name      *string   `json:"name"`
	Bio       *string   `json:"bio"`
	Interests *[]string `json:"interests"`
}

func (in *ProfileUpdateInput) Validate() error {
	fields := map[string]string{}
	if in.Name == nil && in.Bio == nil && in.Interests == nil {
		fields["profile"] = "Nothing to update"
		return fieldsErr(fields)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
		switch n := len([]rune(name)); {
		case n == 0:
			fields["name"] = "Name is required"
		case n > maxNameRunes:
			fields["name"] = "Name must be at most 50 characters"
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		in.Bio = &bio
		if len([]rune(bio)) > maxBioRunes {
			fields["bio"] = "Bio must be at most 500 characters"
		}
	}
	if in.Interests != nil {
		seen := map[string]struct{}{}
		cleaned := make([]string, 0, len(*in.Interests))
		for _, raw := range *in.Interests {
			interest := strings.TrimSpace(raw)
			key := strings.ToLower(interest)
			if _, dup := seen[key]; interest == "" || dup {
				continue
			}
			if len([]rune(interest)) > maxInterestRunes {
				fields["interests"] = "Each interest must be at most 50 characters"
				break
			}
			seen[key] = struct{}{}
			cleaned = append(cleaned, interest)
		}
		if len(cleaned) > maxInterests {
			fields["interests"] = "At most 20 interests are allowed"
		}
		in.Interests = &cleaned
	}
	return fieldsErr(fields)
}

func passwordProblem(pw string) string {
	if len(pw) < 8 {
		return "Password must be at least 8 characters"
	}
	if len(pw) > security.MaxPasswordBytes {
		return "Password is too long"
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
	if !upper || !lower || !digit {
		return "Password must contain an uppercase letter, a lowercase letter and a number"
	}
	return ""
}

func fieldsErr(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return ValidationFailed(fields)
}
