package ykoath

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Code is one calculated one-time password.
//
// The device answers CALCULATE in one of two shapes: a TRUNCATED RESPONSE
// (it already applied RFC 4226 truncation and returns a 4-byte value) or a
// full RESPONSE (the raw HMAC output, truncated client-side). parseCode
// absorbs both; callers only ever see the final value.
type Code struct {
	// Value is the truncated 31-bit code before the modulo reduction.
	Value uint32

	// Digits is the display length reported by the device (6 or 8).
	Digits int

	// ValidFrom and ValidUntil bound the time step the code was calculated
	// for. Zero for HOTP codes, which do not expire with time.
	ValidFrom  time.Time
	ValidUntil time.Time
}

// String renders the code zero-padded to its digit count.
func (c Code) String() string {
	return FormatCode(c.Value, c.Digits)
}

// withWindow stamps the TOTP validity bounds onto the code.
func (c Code) withWindow(at time.Time, period time.Duration) Code {
	c.ValidFrom, c.ValidUntil = timeWindow(at, period)
	return c
}

// parseCode interprets the value of a calculate-response record. The first
// byte is always the digit count; the remainder depends on the tag.
func parseCode(tag byte, value []byte) (Code, error) {
	if len(value) < 1 {
		return Code{}, fmt.Errorf("%w: empty calculate response", ErrMalformedResponse)
	}

	digits := int(value[0])
	if digits != 6 && digits != 8 {
		return Code{}, fmt.Errorf("%w: digit count %d", ErrMalformedResponse, digits)
	}

	switch tag {
	case tagTruncated:
		// Device-side truncation: exactly 4 bytes follow the digit count.
		if len(value) != 5 {
			return Code{}, fmt.Errorf("%w: truncated response of %d bytes", ErrMalformedResponse, len(value))
		}
		return Code{
			Value:  binary.BigEndian.Uint32(value[1:5]) & 0x7FFFFFFF,
			Digits: digits,
		}, nil

	case tagResponse:
		// Raw HMAC output: truncate client-side.
		truncated, err := Truncate(value[1:])
		if err != nil {
			return Code{}, err
		}
		return Code{
			Value:  truncated,
			Digits: digits,
		}, nil

	default:
		return Code{}, fmt.Errorf("%w: unexpected response tag 0x%02X", ErrMalformedResponse, tag)
	}
}
