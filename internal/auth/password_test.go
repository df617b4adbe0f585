package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("password1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "password1" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := CheckPassword(hash, "password1"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := CheckPassword(hash, "password2"); err == nil {
		t.Fatal("wrong password accepted")
	}
}
