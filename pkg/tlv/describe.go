package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Describe renders parsed entries as an indented, human-readable report.
// Values are shown in hex with a printable-ASCII gloss, which is usually
// enough to eyeball credential names and challenges in a trace dump.
func Describe(entries []Entry) string {
	var lines []string
	for _, e := range entries {
		valStr := strings.ToUpper(hex.EncodeToString(e.Value))
		lines = append(lines, fmt.Sprintf("    - Tag %02X: %s (%q)", e.Tag, valStr, MakeSafeASCII(e.Value)))
	}
	return strings.Join(lines, "\n")
}

// MakeSafeASCII replaces non-printable bytes with '.' for display purposes.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
