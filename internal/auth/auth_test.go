package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/adamscao/permitserver/internal/auth"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("hash must not be the plaintext password")
	}

	if !auth.CheckPassword("hunter22", hash) {
		t.Error("expected the password to verify")
	}
	if auth.CheckPassword("wrong", hash) {
		t.Error("expected a wrong password to fail")
	}
}

func TestTOTPRoundTrip(t *testing.T) {
	secret, err := auth.GenerateTOTPSecret("mgonzalez")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a secret")
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !auth.ValidateTOTP(secret, code) {
		t.Error("expected the current code to validate")
	}
	if auth.ValidateTOTP(secret, "000000") {
		t.Error("expected a bogus code to fail")
	}
}

func TestGenerateTOTPURL(t *testing.T) {
	url := auth.GenerateTOTPURL("SECRET123", "mgonzalez")
	if !strings.HasPrefix(url, "otpauth://totp/") {
		t.Errorf("unexpected scheme: %s", url)
	}
	if !strings.Contains(url, "secret=SECRET123") || !strings.Contains(url, "mgonzalez") {
		t.Errorf("url is missing enrollment data: %s", url)
	}
}
