package entity

import (
	"errors"
	"testing"
)

func TestNewAccountValidation(t *testing.T) {
	cases := []struct {
		name    string
		argName string
		email   string
		wantErr error
	}{
		{"empty name", "", "bob@example.com", ErrEmptyName},
		{"whitespace name", "   ", "bob@example.com", ErrEmptyName},
		{"bad email", "Bob", "not-an-email", ErrInvalidEmail},
		{"empty email", "Bob", "", ErrInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAccount(tc.argName, "s3cret-pass", tc.email, ProfileCommon)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("NewAccount() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewAccountHashesPassword(t *testing.T) {
	a, err := NewAccount("Bob", "s3cret-pass", "Bob@Example.com", ProfileCommon)
	if err != nil {
		t.Fatalf("NewAccount() error = %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected a generated id")
	}
	if a.Email != "bob@example.com" {
		t.Fatalf("email not normalized, got %q", a.Email)
	}
	if !a.Active {
		t.Fatal("new accounts must start active")
	}
	if a.Password == "s3cret-pass" {
		t.Fatal("raw password must never be stored")
	}
	if !a.VerifyPassword("s3cret-pass") {
		t.Fatal("VerifyPassword rejected the original secret")
	}
	if a.VerifyPassword("wrong") {
		t.Fatal("VerifyPassword accepted a wrong secret")
	}
}

func TestRestoreKeepsHashVerbatim(t *testing.T) {
	a := Restore("id-1", "Bob", "$2a$10$fakehash", "bob@example.com", ProfileAdmin, false)
	if a.Password != "$2a$10$fakehash" {
		t.Fatalf("Restore must not touch the stored hash, got %q", a.Password)
	}
	if a.Active {
		t.Fatal("Restore must preserve the active flag")
	}
}

func TestParseProfile(t *testing.T) {
	for _, s := range []string{"Common", "Admin"} {
		p, err := ParseProfile(s)
		if err != nil {
			t.Fatalf("ParseProfile(%q) error = %v", s, err)
		}
		if p.String() != s {
			t.Fatalf("ParseProfile(%q) = %q", s, p)
		}
	}
	if _, err := ParseProfile("Superuser"); err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
}
