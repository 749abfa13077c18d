/*
Package ykoath implements the client side of the YubiKey OATH applet protocol.

The applet stores OATH credentials (TOTP and HOTP secrets) on the token and
performs the HMAC computation on-device, so the secrets never leave the
hardware. This package drives the applet over APDUs: it selects the applet,
authenticates password-protected tokens, lists stored credentials and asks
the device to calculate one-time codes.

# Session state

A Session is an explicit state machine:

	Unselected -> Select() -> Locked   (device reports password protection)
	                       -> Unlocked (device is unprotected)
	Locked -> Validate(password) -> Unlocked

Credential operations (List, Calculate, Put, Delete) are only valid in the
Unlocked state. Any transport-level failure tears the session back to
Unselected: a torn exchange leaves the applet state unknown, so the client
must re-select (and re-authenticate) rather than resume.

# Protocol shape

Commands are APDUs with applet-specific instruction bytes; command data and
response bodies are flat tag-length-value sequences (see pkg/tlv). Responses
that exceed one frame are continued with the applet's SEND REMAINING
instruction, handled transparently by the transport client.

# Code calculation

CALCULATE responses come in two shapes: a truncated response (the device
already applied RFC 4226 dynamic truncation) or a full response (the raw
HMAC, truncated client-side). Both are supported; see Code.
*/
package ykoath

import "github.com/gregLibert/ykoath/pkg/iso7816"

// AID is the application identifier of the YubiKey OATH applet.
var AID = []byte{0xA0, 0x00, 0x00, 0x05, 0x27, 0x21, 0x01}

// Instruction bytes of the OATH applet command set.
const (
	insPut           iso7816.InsCode = 0x01
	insDelete        iso7816.InsCode = 0x02
	insSetCode       iso7816.InsCode = 0x03
	insReset         iso7816.InsCode = 0x04
	insList          iso7816.InsCode = 0xA1
	insCalculate     iso7816.InsCode = 0xA2
	insValidate      iso7816.InsCode = 0xA3
	insCalculateAll  iso7816.InsCode = 0xA4
	insSendRemaining iso7816.InsCode = 0xA5
)

// Tags of the TLV fields in applet commands and responses.
const (
	tagName      byte = 0x71
	tagNameList  byte = 0x72
	tagKey       byte = 0x73
	tagChallenge byte = 0x74
	tagResponse  byte = 0x75
	tagTruncated byte = 0x76
	tagHOTP      byte = 0x77
	tagProperty  byte = 0x78
	tagVersion   byte = 0x79
	tagIMF       byte = 0x7A
	tagAlgorithm byte = 0x7B
	tagTouch     byte = 0x7C
)

const (
	// MaxNameLength is the longest credential name the applet stores.
	MaxNameLength = 64

	// minKeyLength is the shortest HMAC key the applet accepts; shorter
	// secrets are zero-padded up to it before PUT.
	minKeyLength = 14

	// propRequireTouch marks a credential as requiring physical
	// confirmation before calculation. PROPERTY is encoded as two raw
	// bytes (tag + value, no length) in the PUT command.
	propRequireTouch byte = 0x02
)
