package hash

import (
	"strings"
	"testing"
)

// fastParams keeps the cost low so the test suite stays quick.
var fastParams = Params{
	Memory:      16 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestPasswordRoundtrip(t *testing.T) {
	encoded, err := PasswordWithParams("s3cret-password", fastParams)
	if err != nil {
		t.Fatalf("PasswordWithParams() error = %v", err)
	}

	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Errorf("encoded hash = %q, want $argon2id$ prefix", encoded)
	}

	ok, err := Verify("s3cret-password", encoded)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Error("correct password should verify")
	}

	ok, err = Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Error("wrong password must not verify")
	}
}

func TestPassword_SaltedHashesDiffer(t *testing.T) {
	a, err := PasswordWithParams("same-password", fastParams)
	if err != nil {
		t.Fatalf("PasswordWithParams() error = %v", err)
	}
	b, err := PasswordWithParams("same-password", fastParams)
	if err != nil {
		t.Fatalf("PasswordWithParams() error = %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password should differ via salt")
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"plain text", "not a hash"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"missing sections", "$argon2id$v=19$m=65536,t=3,p=2"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA"},
		{"bad version", "$argon2id$v=12$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify("password", tt.encoded); err == nil {
				t.Error("Verify() expected error")
			}
		})
	}
}

func TestVerify_ParamsFromHash(t *testing.T) {
	// Verification must honor the parameters embedded in the hash, not the
	// current defaults.
	encoded, err := PasswordWithParams("s3cret-password", fastParams)
	if err != nil {
		t.Fatalf("PasswordWithParams() error = %v", err)
	}

	ok, err := Verify("s3cret-password", encoded)
	if err != nil || !ok {
		t.Errorf("hash with non-default params should still verify: ok=%v err=%v", ok, err)
	}
}
