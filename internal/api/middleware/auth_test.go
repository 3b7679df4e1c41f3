package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractAPIKey_XAPIKeyHeader(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/acquire", nil)
	req.Header.Set("X-Api-Key", "worker-key-123")

	key, found := extractAPIKey(req)
	if !found || key != "worker-key-123" { // pragma: allowlist secret
		t.Errorf("extractAPIKey() = (%q, %v), want (worker-key-123, true)", key, found)
	}
}

func TestExtractAPIKey_AuthorizationBearer(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/acquire", nil)
	req.Header.Set("Authorization", "Bearer worker-key-456")

	key, found := extractAPIKey(req)
	if !found || key != "worker-key-456" { // pragma: allowlist secret
		t.Errorf("extractAPIKey() = (%q, %v), want (worker-key-456, true)", key, found)
	}
}

func TestExtractAPIKey_XAPIKeyTakesPrecedence(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/acquire", nil)
	req.Header.Set("X-Api-Key", "primary-key")
	req.Header.Set("Authorization", "Bearer secondary-key")

	key, _ := extractAPIKey(req)
	if key != "primary-key" {
		t.Errorf("extractAPIKey() = %q, want primary-key (X-Api-Key precedence)", key)
	}
}

func TestExtractAPIKey_Missing(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/acquire", nil)

	if _, found := extractAPIKey(req); found {
		t.Error("extractAPIKey() found a key on a request with no auth headers")
	}
}

func TestValidateAPIKey_RejectsHeaderInjection(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if _, ok := validateAPIKey("key\r\nX-Injected: true"); ok {
		t.Error("validateAPIKey() accepted a key containing CRLF")
	}
}

func TestValidateAPIKey_TrimsWhitespace(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	key, ok := validateAPIKey("  spaced-key  ")
	if !ok || key != "spaced-key" {
		t.Errorf("validateAPIKey() = (%q, %v), want (spaced-key, true)", key, ok)
	}
}

func TestValidateAPIKey_RejectsEmptyAfterTrim(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if _, ok := validateAPIKey("   "); ok {
		t.Error("validateAPIKey() accepted an all-whitespace key")
	}
}
