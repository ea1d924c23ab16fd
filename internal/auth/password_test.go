package auth

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-enough")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-enough" {
		t.Fatal("hash must not be the plaintext")
	}
	if !CheckPassword(hash, "s3cret-enough") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Fatal("expected non-matching password to fail")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}
