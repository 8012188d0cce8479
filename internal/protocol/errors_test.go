package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for code := range knownCodes {
		if !IsKnownCode(code) {
			t.Fatalf("known code %s rejected", code)
		}
	}
	if !IsKnownCode("") {
		t.Fatal("empty code means success and is always valid")
	}
	for _, bad := range []string{"E_MADE_UP", "no_funds", "E_NO_FUNDS "} {
		if IsKnownCode(bad) {
			t.Fatalf("unknown code %q accepted", bad)
		}
	}
}
