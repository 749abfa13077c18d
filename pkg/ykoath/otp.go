package ykoath

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gregLibert/ykoath/pkg/bits"
)

// Standard OTP arithmetic (RFC 4226 dynamic truncation, RFC 6238 time
// steps). The device performs the HMAC; the client only needs this when the
// device answers with the raw MAC instead of a pre-truncated code, and to
// build the time-step challenge. Everything is unsigned integer arithmetic.

// Truncate applies RFC 4226 dynamic truncation to an HMAC output:
// the low 4 bits of the last byte select an offset, 4 bytes are extracted
// there, and bit 31 is cleared to keep the value non-negative in 31-bit
// signed interpretations.
func Truncate(mac []byte) (uint32, error) {
	if len(mac) < 5 {
		return 0, fmt.Errorf("%w: HMAC output of %d bytes", ErrMalformedResponse, len(mac))
	}

	offset := bits.LowNibble(mac[len(mac)-1])
	if int(offset)+4 > len(mac) {
		return 0, fmt.Errorf("%w: truncation offset %d exceeds %d-byte HMAC", ErrMalformedResponse, offset, len(mac))
	}

	return binary.BigEndian.Uint32(mac[offset:offset+4]) & 0x7FFFFFFF, nil
}

// FormatCode reduces a truncated value modulo 10^digits and renders it
// left-padded with zeros to the full digit count.
func FormatCode(value uint32, digits int) string {
	return fmt.Sprintf("%0*d", digits, value%pow10(digits))
}

func pow10(n int) uint32 {
	result := uint32(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

// TimeChallenge encodes the RFC 6238 time step floor(unix/period) as the
// 8-byte big-endian challenge the CALCULATE commands expect.
func TimeChallenge(at time.Time, period time.Duration) []byte {
	if period <= 0 {
		period = DefaultPeriod
	}

	step := uint64(at.Unix()) / uint64(period/time.Second)

	challenge := make([]byte, 8)
	binary.BigEndian.PutUint64(challenge, step)
	return challenge
}

// timeWindow returns the validity bounds of the time step containing at.
func timeWindow(at time.Time, period time.Duration) (from, until time.Time) {
	if period <= 0 {
		period = DefaultPeriod
	}

	seconds := int64(period / time.Second)
	start := (at.Unix() / seconds) * seconds
	return time.Unix(start, 0), time.Unix(start+seconds, 0)
}
