package auth

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := HashSecret("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter2" {
		t.Error("hash must not equal the secret")
	}
	if !VerifySecret(hash, "hunter2") {
		t.Error("expected matching secret to verify")
	}
	if VerifySecret(hash, "hunter3") {
		t.Error("expected wrong secret to fail")
	}
}

func TestVerifyEmptyHash(t *testing.T) {
	if VerifySecret("", "") {
		t.Error("empty hash must never verify")
	}
	if VerifySecret("", "anything") {
		t.Error("empty hash must never verify")
	}
}

func TestPINHashing(t *testing.T) {
	hash, err := HashSecret("0000")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifySecret(hash, "0000") {
		t.Error("expected PIN to verify")
	}
	if VerifySecret(hash, "0001") {
		t.Error("expected wrong PIN to fail")
	}
}
