package ykoath

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gregLibert/ykoath/pkg/bits"
)

// Type identifies the OATH flavor of a credential.
type Type byte

const (
	TOTP Type = 0x10
	HOTP Type = 0x20
)

func (t Type) String() string {
	switch t {
	case TOTP:
		return "TOTP"
	case HOTP:
		return "HOTP"
	default:
		return fmt.Sprintf("Unknown Type (0x%02X)", byte(t))
	}
}

// Algorithm identifies the HMAC hash of a credential.
type Algorithm byte

const (
	SHA1   Algorithm = 0x01
	SHA256 Algorithm = 0x02
	SHA512 Algorithm = 0x03
)

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	case SHA512:
		return "SHA512"
	default:
		return fmt.Sprintf("Unknown Algorithm (0x%02X)", byte(a))
	}
}

// DefaultPeriod is the TOTP time step used unless the credential name
// carries an explicit "NN/" period prefix.
const DefaultPeriod = 30 * time.Second

// Credential describes one OTP credential stored on the device.
//
// The device identifies credentials solely by their full name; by the usual
// convention the name is "[period/][issuer:]account". Credentials parsed
// from device responses are value types: a fresh List supersedes any prior
// result, there is no merging.
type Credential struct {
	Name      string
	Type      Type
	Algorithm Algorithm

	// Digits is the code length (6 or 8). The device only reports it in
	// calculate responses, so it is zero on credentials parsed from LIST.
	Digits int

	// Counter is the initial moving factor for HOTP credentials (PUT only;
	// the device keeps the live counter internally and auto-increments it).
	Counter uint32

	// TouchRequired marks the credential as demanding physical
	// confirmation (PUT only; LIST does not report it).
	TouchRequired bool
}

// Period returns the TOTP time step of the credential, honoring an "NN/"
// name prefix and falling back to the 30-second default.
func (c Credential) Period() time.Duration {
	if c.Type != TOTP {
		return 0
	}
	prefix, _, found := strings.Cut(c.Name, "/")
	if !found {
		return DefaultPeriod
	}
	seconds, err := strconv.Atoi(prefix)
	if err != nil || seconds <= 0 {
		return DefaultPeriod
	}
	return time.Duration(seconds) * time.Second
}

// Issuer returns the issuer part of the conventional
// "[period/][issuer:]account" name, or "" when the name carries none.
func (c Credential) Issuer() string {
	name := c.nameWithoutPeriod()
	issuer, _, found := strings.Cut(name, ":")
	if !found {
		return ""
	}
	return issuer
}

// Account returns the account part of the conventional name.
func (c Credential) Account() string {
	name := c.nameWithoutPeriod()
	_, account, found := strings.Cut(name, ":")
	if !found {
		return name
	}
	return account
}

func (c Credential) nameWithoutPeriod() string {
	prefix, rest, found := strings.Cut(c.Name, "/")
	if !found {
		return c.Name
	}
	if _, err := strconv.Atoi(prefix); err != nil {
		return c.Name
	}
	return rest
}

func (c Credential) String() string {
	return fmt.Sprintf("%s (%s, %s)", c.Name, c.Type, c.Algorithm)
}

// validate checks the fields a PUT command sends to the device.
func (c Credential) validate() error {
	if len(c.Name) == 0 || len(c.Name) > MaxNameLength {
		return fmt.Errorf("credential name must be 1-%d bytes, got %d", MaxNameLength, len(c.Name))
	}
	if c.Type != TOTP && c.Type != HOTP {
		return fmt.Errorf("unknown credential type 0x%02X", byte(c.Type))
	}
	if c.Algorithm != SHA1 && c.Algorithm != SHA256 && c.Algorithm != SHA512 {
		return fmt.Errorf("unknown algorithm 0x%02X", byte(c.Algorithm))
	}
	if c.Digits != 6 && c.Digits != 8 {
		return fmt.Errorf("digits must be 6 or 8, got %d", c.Digits)
	}
	return nil
}

// parseListEntry builds a Credential from the body of one LIST record:
// a single type/algorithm byte followed by the name.
func parseListEntry(value []byte) (Credential, error) {
	if len(value) < 2 {
		return Credential{}, fmt.Errorf("%w: list entry of %d bytes", ErrMalformedResponse, len(value))
	}

	typ := Type(bits.HighNibble(value[0]) << 4)
	alg := Algorithm(bits.LowNibble(value[0]))
	name := value[1:]

	if typ != TOTP && typ != HOTP {
		return Credential{}, fmt.Errorf("%w: unknown credential type 0x%02X", ErrMalformedResponse, byte(typ))
	}
	if alg != SHA1 && alg != SHA256 && alg != SHA512 {
		return Credential{}, fmt.Errorf("%w: unknown algorithm 0x%02X", ErrMalformedResponse, byte(alg))
	}
	if len(name) > MaxNameLength {
		return Credential{}, fmt.Errorf("%w: credential name of %d bytes", ErrMalformedResponse, len(name))
	}

	return Credential{
		Name:      string(name),
		Type:      typ,
		Algorithm: alg,
	}, nil
}

// typeAlgByte packs type and algorithm into the single byte the protocol
// uses in KEY fields and LIST entries.
func (c Credential) typeAlgByte() byte {
	return byte(c.Type) | byte(c.Algorithm)
}
