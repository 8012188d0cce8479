package protocol

import (
	"strings"
	"testing"
)

func TestRoomCode_RoundTrip(t *testing.T) {
	cases := []string{
		"192.168.1.50:7654",
		"10.0.0.1:1",
		"127.0.0.1:65535",
		"0.0.0.0:80",
		"255.255.255.255:7654",
	}
	for _, addr := range cases {
		code, err := EncodeRoomCode(addr)
		if err != nil {
			t.Fatalf("encode %s: %v", addr, err)
		}
		got, err := DecodeRoomCode(code)
		if err != nil {
			t.Fatalf("decode %s: %v", code, err)
		}
		if got != addr {
			t.Fatalf("round trip %s -> %s -> %s", addr, code, got)
		}
	}
}

func TestRoomCode_CaseAndSpace(t *testing.T) {
	code, err := EncodeRoomCode("192.168.1.50:7654")
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeRoomCode("  " + strings.ToUpper(code) + " ")
	if err != nil {
		t.Fatalf("decode upper: %v", err)
	}
	if got != "192.168.1.50:7654" {
		t.Fatalf("got %s", got)
	}
}

func TestRoomCode_RejectMalformed(t *testing.T) {
	bad := []string{
		"",
		"lusab",
		"lusab-babad",
		"lusab-babad-tobok-extra",
		"quxab-babad-tobok", // q not in alphabet
		"lusab-babad-tobo",  // short word
		"lesab-babad-tobok", // e not a vowel here
	}
	for _, code := range bad {
		if _, err := DecodeRoomCode(code); err == nil {
			t.Fatalf("expected error for %q", code)
		}
		if ValidRoomCode(code) {
			t.Fatalf("ValidRoomCode(%q) = true", code)
		}
	}
}

func TestRoomCode_RejectNonIPv4(t *testing.T) {
	if _, err := EncodeRoomCode("[::1]:7654"); err == nil {
		t.Fatal("expected error for IPv6")
	}
	if _, err := EncodeRoomCode("example.com:7654"); err == nil {
		t.Fatal("expected error for hostname")
	}
}
