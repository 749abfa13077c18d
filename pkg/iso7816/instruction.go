package iso7816

import (
	"fmt"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// The INS byte identifies the specific command to be performed by the card.
// Values where the upper nibble is '6' or '9' (0x6X or 0x9X) are invalid:
// these ranges are reserved for Status Words (SW1) and transport layer control
// procedures (ISO/IEC 7816-3).
//
// Applets define their own instruction sets on top of this byte. Only the
// handful of interindustry instructions this module actually issues are named
// here; applet-specific codes live with the applet package that uses them.

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Interindustry Instruction (INS) codes as defined in ISO/IEC 7816-4.
const (
	INS_VERIFY       InsCode = 0x20
	INS_SELECT       InsCode = 0xA4
	INS_GET_RESPONSE InsCode = 0xC0
	INS_GET_DATA     InsCode = 0xCA
)

// Valid rejects '6X' and '9X' values as they are reserved according to ISO 7816-3.
func (i InsCode) Valid() error {
	highNibble := byte(i) & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(i))
	}
	return nil
}

// String returns a readable representation of the instruction byte.
func (i InsCode) String() string {
	switch i {
	case INS_VERIFY:
		return "INS: 0x20 | VERIFY"
	case INS_SELECT:
		return "INS: 0xA4 | SELECT"
	case INS_GET_RESPONSE:
		return "INS: 0xC0 | GET RESPONSE"
	case INS_GET_DATA:
		return "INS: 0xCA | GET DATA"
	default:
		return fmt.Sprintf("INS: 0x%02X", byte(i))
	}
}
