package tlv

import (
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	entries := []Entry{
		{Tag: 0x71, Value: []byte("acme:alice")},
		{Tag: 0x74, Value: Hex("00 00 00 00 03 14 5D 8C")},
	}

	got := Describe(entries)

	for _, part := range []string{
		"Tag 71",
		`"acme:alice"`,
		"Tag 74",
		"0000000003145D8C",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("Describe() = %q; want containing %q", got, part)
		}
	}

	if lines := strings.Split(got, "\n"); len(lines) != 2 {
		t.Errorf("Describe() produced %d lines, want 2", len(lines))
	}
}

func TestMakeSafeASCII(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{[]byte("VISA"), "VISA"},
		{[]byte{'O', 'K', 0x00, 0xFF}, "OK.."},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := MakeSafeASCII(tt.input); got != tt.want {
			t.Errorf("MakeSafeASCII(% X) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
