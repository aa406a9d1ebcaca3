package utils

import (
	"strings"
	"testing"
)

func TestMaskSensitive(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		missing string
	}{
		{"Contact john@example.com for details", "[EMAIL]", "john@example.com"},
		{"Call +1-555-1234 for support", "[PHONE]", "555-1234"},
		{"Reference 12345678 attached", "[ACCOUNT_NUM]", "12345678"},
		{"Account number 1234567890 on file", "[ACCOUNT_NUM]", "1234567890"},
		{"Ref 987654", "[ACCOUNT_NUM]", "987654"},
	}
	for _, tt := range tests {
		got := MaskSensitive(tt.in)
		if !strings.Contains(got, tt.want) {
			t.Fatalf("MaskSensitive(%q) = %q, want it to contain %q", tt.in, got, tt.want)
		}
		if strings.Contains(got, tt.missing) {
			t.Fatalf("MaskSensitive(%q) = %q still contains %q", tt.in, got, tt.missing)
		}
	}
}

func TestMaskSensitive_ShortDigitRunsStayPhones(t *testing.T) {
	got := MaskSensitive("Call +1-555-1234 or ref 987654")
	want := "Call [PHONE] or ref [ACCOUNT_NUM]"
	if got != want {
		t.Fatalf("MaskSensitive = %q, want %q", got, want)
	}
}

func TestMaskSensitive_NoSensitiveData(t *testing.T) {
	in := "Customer cannot log in after the update"
	if got := MaskSensitive(in); got != in {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestHashStringToUint64_Stable(t *testing.T) {
	if HashStringToUint64("case-1") != HashStringToUint64("case-1") {
		t.Fatal("hash is not deterministic")
	}
	if HashStringToUint64("case-1") == HashStringToUint64("case-2") {
		t.Fatal("expected distinct hashes")
	}
}
