package crypto

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	second, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestMalformedHashDoesNotMatch(t *testing.T) {
	for _, hash := range []string{"", "not-a-hash", "$2b$"} {
		if err := CheckPassword(hash, "secret"); err == nil {
			t.Fatalf("expected mismatch for malformed hash %q", hash)
		}
	}
}
