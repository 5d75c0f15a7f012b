package encription

import (
	"testing"
)

func TestHashAndComparePassword(t *testing.T) {
	enc := NewEnc()

	hash, err := enc.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Error("hash must not equal the plain password")
	}

	if !enc.CompareHashAndPassword(hash, "correct horse battery staple") {
		t.Error("CompareHashAndPassword should accept the original password")
	}
	if enc.CompareHashAndPassword(hash, "wrong password") {
		t.Error("CompareHashAndPassword should reject a wrong password")
	}
}
