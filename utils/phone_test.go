package utils

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"0700000000", "+254700000000"},
		{"0700 000 000", "+254700000000"},
		{"+254700000000", "+254700000000"},
		{"whatsapp:+254700000000", "+254700000000"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in, "KE")
		if err != nil {
			t.Fatalf("NormalizePhone(%q) error: %v", tc.in, err)
		}
		if got != tc.expected {
			t.Fatalf("NormalizePhone(%q) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestNormalizePhone_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "whatsapp:", "hello", "12", "07000000", "+1 200 555 0100"} {
		if _, err := NormalizePhone(in, "KE"); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("NormalizePhone(%q) expected ErrInvalidPhone, got %v", in, err)
		}
	}
}

func TestWhatsAppAddress(t *testing.T) {
	got, err := WhatsAppAddress("0700000000", "KE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "whatsapp:+254700000000" {
		t.Fatalf("expected channel-prefixed address, got %s", got)
	}
}
