package auth

import (
	"errors"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"user.name+tag@sub.example.co",
		"a@b.io",
	}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) = %v, want nil", email, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"plain",
		"@example.com",
		"user@",
		"user@example",
		"user example@example.com",
	}
	for _, email := range invalid {
		if err := ValidateEmail(email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("ValidateEmail(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "ok", password: "password1", wantErr: false},
		{name: "too short", password: "pass1", wantErr: true},
		{name: "letters only", password: "passwordonly", wantErr: true},
		{name: "digits only", password: "12345678", wantErr: true},
		{name: "mixed", password: "abc12345", wantErr: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && !errors.Is(err, ErrInvalidPassword) {
				t.Fatalf("error = %v, want ErrInvalidPassword", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("error = %v, want nil", err)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world\n  "); got != "helloworld" {
		t.Fatalf("SanitizeString = %q", got)
	}
	if got := SanitizeString("обычный текст"); got != "обычный текст" {
		t.Fatalf("SanitizeString = %q", got)
	}
}
