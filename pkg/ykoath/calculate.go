package ykoath

import (
	"fmt"
	"time"

	"github.com/gregLibert/ykoath/pkg/iso7816"
	"github.com/gregLibert/ykoath/pkg/tlv"
)

// Calculate asks the device to compute one code. For TOTP credentials the
// challenge is the 8-byte big-endian time step (see TimeChallenge); for HOTP
// credentials the challenge is ignored and the device's internal counter is
// used and advanced.
//
// Touch-protected credentials fail with ErrTouchRequired unless the user
// confirms on the token while the exchange is pending.
func (s *Session) Calculate(name string, challenge []byte) (Code, error) {
	if err := s.requireUnlocked(); err != nil {
		return Code{}, err
	}

	payload, err := tlv.Encode(
		tlv.New(tagName, []byte(name)),
		tlv.New(tagChallenge, challenge),
	)
	if err != nil {
		return Code{}, err
	}

	data, err := s.exchange(iso7816.NewCommandAPDU(0x00, insCalculate, 0x00, 0x01, payload, 0))
	if err != nil {
		return Code{}, err
	}

	entries, err := tlv.Parse(data)
	if err != nil {
		return Code{}, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if len(entries) != 1 {
		return Code{}, fmt.Errorf("%w: %d entries in calculate response", ErrMalformedResponse, len(entries))
	}
	return parseCode(entries[0].Tag, entries[0].Value)
}

// NamedCode pairs a credential name with its calculated code in a
// calculate-all response. Exactly one of Code, TouchRequired and HOTP is
// meaningful per entry: touch-protected and HOTP credentials are reported
// but not calculated in bulk (calculating an HOTP code advances the device
// counter, which a display refresh must never do).
type NamedCode struct {
	Name string
	Code Code

	// TouchRequired marks a credential that needs physical confirmation;
	// calculate it individually with Calculate.
	TouchRequired bool

	// HOTP marks a counter-based credential; calculate it individually
	// with Calculate when the user asks for it.
	HOTP bool
}

// CalculateAll computes codes for every stored credential in one exchange,
// using the same challenge for all of them. Entries come back in device
// order, matching List.
func (s *Session) CalculateAll(challenge []byte) ([]NamedCode, error) {
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}

	payload, err := tlv.Encode(tlv.New(tagChallenge, challenge))
	if err != nil {
		return nil, err
	}

	data, err := s.exchange(iso7816.NewCommandAPDU(0x00, insCalculateAll, 0x00, 0x01, payload, 0))
	if err != nil {
		return nil, err
	}

	entries, err := tlv.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	// The response alternates NAME entries with one result entry each.
	if len(entries)%2 != 0 {
		return nil, fmt.Errorf("%w: %d entries in calculate-all response", ErrMalformedResponse, len(entries))
	}

	results := make([]NamedCode, 0, len(entries)/2)
	for i := 0; i < len(entries); i += 2 {
		name, result := entries[i], entries[i+1]
		if name.Tag != tagName {
			return nil, fmt.Errorf("%w: expected name entry, got tag 0x%02X", ErrMalformedResponse, name.Tag)
		}

		nc := NamedCode{Name: string(name.Value)}
		switch result.Tag {
		case tagTouch:
			nc.TouchRequired = true
		case tagHOTP:
			nc.HOTP = true
		case tagResponse, tagTruncated:
			code, err := parseCode(result.Tag, result.Value)
			if err != nil {
				return nil, err
			}
			nc.Code = code
		default:
			return nil, fmt.Errorf("%w: unexpected result tag 0x%02X for %q", ErrMalformedResponse, result.Tag, nc.Name)
		}
		results = append(results, nc)
	}
	return results, nil
}

// GetCode calculates the code for one named credential, valid at the given
// time. It resolves the credential's type and period from the device, so a
// torn name prefix cannot silently produce codes on the wrong time step.
func (s *Session) GetCode(name string, at time.Time) (Code, error) {
	creds, err := s.List()
	if err != nil {
		return Code{}, err
	}

	for _, cred := range creds {
		if cred.Name != name {
			continue
		}
		if cred.Type == HOTP {
			return s.Calculate(name, nil)
		}
		period := cred.Period()
		code, err := s.Calculate(name, TimeChallenge(at, period))
		if err != nil {
			return Code{}, err
		}
		return code.withWindow(at, period), nil
	}
	return Code{}, fmt.Errorf("%w: %q", ErrNoSuchCredential, name)
}

// Codes calculates codes for all stored credentials, valid at the given
// time. The bulk exchange uses the default 30-second time step; credentials
// whose name carries a different period prefix are recalculated individually
// on their own step. HOTP and touch-protected entries are passed through
// uncalculated, flagged on the NamedCode.
func (s *Session) Codes(at time.Time) ([]NamedCode, error) {
	results, err := s.CalculateAll(TimeChallenge(at, DefaultPeriod))
	if err != nil {
		return nil, err
	}

	for i, nc := range results {
		if nc.TouchRequired || nc.HOTP {
			continue
		}
		period := Credential{Name: nc.Name, Type: TOTP}.Period()
		if period == DefaultPeriod {
			results[i].Code = nc.Code.withWindow(at, period)
			continue
		}
		code, err := s.Calculate(nc.Name, TimeChallenge(at, period))
		if err != nil {
			return nil, err
		}
		results[i].Code = code.withWindow(at, period)
	}
	return results, nil
}
