package user

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery staple"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &User{PasswordHash: string(hash)}

	if !CheckPassword(u, "correct horse battery staple") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(u, "wrong password") {
		t.Error("expected wrong password to fail verification")
	}
	if CheckPassword(u, "") {
		t.Error("expected empty password to fail verification")
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	u := &User{PasswordHash: "not-a-bcrypt-hash"}
	if CheckPassword(u, "anything") {
		t.Error("expected malformed hash to fail verification")
	}
}
