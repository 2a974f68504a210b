package env

import "testing"

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("MERCH_ENV_TEST", "  ")
	if got := Get("MERCH_ENV_TEST", "dflt"); got != "dflt" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("MERCH_ENV_TEST", " value ")
	if got := Get("MERCH_ENV_TEST", "dflt"); got != "value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}
