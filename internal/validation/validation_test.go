package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "user@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "user+tag@example.com",
			wantErr: false,
		},
		{
			name:    "missing @",
			email:   "testexample.com",
			wantErr: true,
		},
		{
			name:    "missing domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "missing local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "empty string",
			email:   "",
			wantErr: true,
		},
		{
			name:    "spaces in email",
			email:   "test @example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "valid password",
			password: "password123",
			wantErr:  false,
		},
		{
			name:     "password exactly 8 characters",
			password: "pass1234",
			wantErr:  false,
		},
		{
			name:     "password too short",
			password: "pass123",
			wantErr:  true,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "long password",
			password: "thisIsAVeryLongPasswordThatShouldBeValid123",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDeckTitle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid title", input: "Spanish Basics", wantErr: false},
		{name: "empty title", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxTitleLength+1), wantErr: true},
		{name: "multibyte at limit", input: strings.Repeat("é", MaxTitleLength), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeckTitle(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDeckTitle(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCardReportsBothSides(t *testing.T) {
	err := ValidateCard("", "")
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("ValidateCard() error = %v, want Errors", err)
	}
	if len(errs) != 2 || errs[0].Field != "front" || errs[1].Field != "back" {
		t.Errorf("errs = %+v", errs)
	}
	if err := ValidateCard("hola", "hello"); err != nil {
		t.Errorf("ValidateCard() error = %v", err)
	}
}

func TestStruct(t *testing.T) {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		Outcome  string `json:"outcome" validate:"omitempty,oneof=correct incorrect"`
	}

	tests := []struct {
		name       string
		req        request
		wantFields []string
	}{
		{name: "valid", req: request{Email: "a@example.com", Password: "password1"}},
		{name: "missing all", req: request{}, wantFields: []string{"email", "password"}},
		{name: "bad outcome", req: request{Email: "a@example.com", Password: "password1", Outcome: "maybe"}, wantFields: []string{"outcome"}},
		{name: "short password", req: request{Email: "a@example.com", Password: "short"}, wantFields: []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Struct() error = %v", err)
				}
				return
			}
			var errs Errors
			if !errors.As(err, &errs) {
				t.Fatalf("Struct() error = %v, want Errors", err)
			}
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("got %d errors %v, want fields %v", len(errs), errs, tt.wantFields)
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("error %d field = %q, want %q", i, errs[i].Field, field)
				}
			}
			if !IsValidationError(err) {
				t.Error("IsValidationError() = false")
			}
		})
	}
}
