package service

import (
	"strings"
	"testing"
)

func TestRegisterInputValidate(t *testing.T) {
	valid := RegisterInput{Name: "Ada", Username: "ada_l-1", Email: "a@x.com", Password: "Secret123"}
	tests := []struct {
		name  string
		mod   func(*RegisterInput)
		field string
	}{
		{name: "valid", mod: func(*RegisterInput) {}},
		{name: "long name", mod: func(in *RegisterInput) { in.Name = strings.Repeat("a", 51) }, field: "name"},
		{name: "short username", mod: func(in *RegisterInput) { in.Username = "ab" }, field: "username"},
		{name: "username charset", mod: func(in *RegisterInput) { in.Username = "ada lovelace" }, field: "username"},
		{name: "email display name", mod: func(in *RegisterInput) { in.Email = "Ada <a@x.com>" }, field: "email"},
		{name: "password no digit", mod: func(in *RegisterInput) { in.Password = "SecretSecret" }, field: "password"},
		{name: "password no upper", mod: func(in *RegisterInput) { in.Password = "secret123" }, field: "password"},
		{name: "password too long", mod: func(in *RegisterInput) { in.Password = "Aa1" + strings.Repeat("x", 80) }, field: "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mod(&in)
			err := in.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid input, got %v", err)
				}
				return
			}
			se, ok := AsError(err)
			if !ok || se.Kind != KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := se.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q in %v", tc.field, se.Fields)
			}
		})
	}
}

func TestCodeInputRequiresSixCharacters(t *testing.T) {
	in := CodeInput{Email: "a@x.com", Code: "12345"}
	if err := in.Validate(); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	in.Code = " 123456 "
	if err := in.Validate(); err != nil {
		t.Fatalf("expected trimmed code to validate: %v", err)
	}
}

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   400,
		KindBadRequest:   400,
		KindConflict:     409,
		KindUnauthorized: 401,
		KindForbidden:    403,
		KindNotFound:     404,
		KindInternal:     500,
	}
	for kind, want := range cases {
		if got := kind.Status(); got != want {
			t.Fatalf("%s.Status() = %d, want %d", kind, got, want)
		}
	}
}

func TestCodeInputReportsVerificationCodeField(t *testing.T) {
	in := ResetPasswordInput{Email: "a@x.com", Code: "12", NewPassword: "Secret123"}
	se, ok := AsError(in.Validate())
	if !ok || se.Fields["verificationCode"] == "" {
		t.Fatalf("expected verificationCode field error, got %v", se)
	}
}

func TestProfileUpdateInputValidate(t *testing.T) {
	str := func(s string) *string { return &s }
	list := func(s ...string) *[]string { return &s }
	many := make([]string, 21)
	for i := range many {
		many[i] = "topic" + strings.Repeat("x", i)
	}
	tests := []struct {
		name  string
		in    ProfileUpdateInput
		field string
	}{
		{name: "empty", in: ProfileUpdateInput{}, field: "profile"},
		{name: "bio only", in: ProfileUpdateInput{Bio: str("")}},
		{name: "blank name", in: ProfileUpdateInput{Name: str("   ")}, field: "name"},
		{name: "long name", in: ProfileUpdateInput{Name: str(strings.Repeat("é", 51))}, field: "name"},
		{name: "long bio", in: ProfileUpdateInput{Bio: str(strings.Repeat("b", 501))}, field: "bio"},
		{name: "long interest", in: ProfileUpdateInput{Interests: list(strings.Repeat("i", 51))}, field: "interests"},
		{name: "too many interests", in: ProfileUpdateInput{Interests: &many}, field: "interests"},
		{name: "duplicates collapse", in: ProfileUpdateInput{Interests: list("Go", "go", " GO ")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid input, got %v", err)
				}
				return
			}
			se, ok := AsError(err)
			if !ok || se.Fields[tc.field] == "" {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestProfileUpdateInputCleansInterests(t *testing.T) {
	interests := []string{" Go ", "go", "", "Rust"}
	in := ProfileUpdateInput{Interests: &interests}
	if err := in.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := *in.Interests; len(got) != 2 || got[0] != "Go" || got[1] != "Rust" {
		t.Fatalf("interests = %q", got)
	}
}
