package apiauth

import (
	"strings"
	"testing"
)

const testAPIKey = "deepq-test-key-0123456789" // pragma: allowlist secret

func TestLookupHash_Deterministic(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	h1 := lookupHash(testAPIKey)
	h2 := lookupHash(testAPIKey)

	if h1 != h2 {
		t.Errorf("lookupHash() not deterministic: %q != %q", h1, h2)
	}

	if h1 == lookupHash(testAPIKey+"x") {
		t.Error("lookupHash() collided on distinct inputs")
	}

	if len(h1) != 64 {
		t.Errorf("lookupHash() length = %d, want 64 (hex sha256)", len(h1))
	}
}

func TestBcryptInput_LongKeyIsPreHashed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	short := bcryptInput(testAPIKey)
	if len(short) > bcryptInputLimit {
		t.Errorf("bcryptInput() for short key returned %d bytes", len(short))
	}

	long := bcryptInput(strings.Repeat("a", 200))
	if len(long) != 32 {
		t.Errorf("bcryptInput() for long key = %d bytes, want 32 (sha256 digest)", len(long))
	}
}

func TestDummyHash_IsValidBcryptFormat(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if !strings.HasPrefix(dummyHash, "$2") {
		t.Errorf("dummyHash = %q, want bcrypt format starting with $2", dummyHash)
	}
}
