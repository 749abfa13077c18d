package ykoath

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/gregLibert/ykoath/pkg/iso7816"
	"github.com/gregLibert/ykoath/pkg/tlv"
)

// Password-derived keys: PBKDF2-SHA1 with the device ID as salt, matching
// what the device itself was provisioned with.
const (
	keyIterations = 1000
	keyLength     = 16
)

// deriveKey turns a password into the device authentication key. The salt is
// the per-device ID from the select response, so the same password yields a
// different key on every token.
func (s *Session) deriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), s.deviceID, keyIterations, keyLength, sha1.New)
}

func hmacSHA1(key, message []byte) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// Validate performs the mutual challenge-response handshake that unlocks a
// password-protected session: it answers the device's select challenge with
// an HMAC keyed by the password-derived key, and verifies the device's
// answer to a fresh client challenge with the same key. A device that
// accepts the password but fails its half of the handshake does not unlock
// the session.
//
// A wrong password returns ErrWrongPassword (with the device's retry counter
// when reported, see RemainingRetries) and the session stays Locked. On an
// already-unlocked session Validate succeeds without touching the device.
// Key material is zeroed before returning, on every path.
func (s *Session) Validate(password string) error {
	switch s.state {
	case StateUnselected:
		return ErrNotSelected
	case StateUnlocked:
		return nil
	}

	key := s.deriveKey(password)
	defer wipe(key)

	clientChallenge := make([]byte, 8)
	if _, err := rand.Read(clientChallenge); err != nil {
		return fmt.Errorf("generating challenge: %w", err)
	}

	payload, err := tlv.Encode(
		tlv.New(tagResponse, hmacSHA1(key, s.challenge)),
		tlv.New(tagChallenge, clientChallenge),
	)
	if err != nil {
		return err
	}
	defer wipe(payload)

	data, err := s.exchange(iso7816.NewCommandAPDU(0x00, insValidate, 0x00, 0x00, payload, 0))
	if err != nil {
		// The applet reports a rejected response as unusable reference
		// data; in this handshake that means the password was wrong.
		if errors.Is(err, ErrNoSuchCredential) {
			return ErrWrongPassword
		}
		return err
	}

	deviceResponse, ok := findValidateResponse(data)
	if !ok {
		return fmt.Errorf("%w: validate response carries no response field", ErrMalformedResponse)
	}
	if !hmac.Equal(deviceResponse, hmacSHA1(key, clientChallenge)) {
		return fmt.Errorf("%w: device failed mutual authentication", ErrGenericDevice)
	}

	s.state = StateUnlocked
	return nil
}

func findValidateResponse(data []byte) ([]byte, bool) {
	entries, err := tlv.Parse(data)
	if err != nil {
		return nil, false
	}
	return tlv.Find(entries, tagResponse)
}

// SetPassword protects the device with a new password. The device proves it
// received the key correctly by answering a challenge with it before the
// command succeeds, so a corrupted key can never lock the token. The session
// stays Unlocked; the password is required from the next Select on.
func (s *Session) SetPassword(password string) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}

	key := s.deriveKey(password)
	defer wipe(key)

	challenge := make([]byte, 8)
	if _, err := rand.Read(challenge); err != nil {
		return fmt.Errorf("generating challenge: %w", err)
	}

	keyValue := make([]byte, 0, 1+len(key))
	keyValue = append(keyValue, byte(TOTP)|byte(SHA1))
	keyValue = append(keyValue, key...)
	defer wipe(keyValue)

	payload, err := tlv.Encode(
		tlv.New(tagKey, keyValue),
		tlv.New(tagChallenge, challenge),
		tlv.New(tagResponse, hmacSHA1(key, challenge)),
	)
	if err != nil {
		return err
	}
	defer wipe(payload)

	if _, err := s.exchange(iso7816.NewCommandAPDU(0x00, insSetCode, 0x00, 0x00, payload, 0)); err != nil {
		return err
	}

	s.challenge = challenge
	return nil
}

// RemovePassword clears the device password. The device stays unlocked for
// every future session.
func (s *Session) RemovePassword() error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}

	payload, err := tlv.Encode(tlv.New(tagKey, nil))
	if err != nil {
		return err
	}

	if _, err := s.exchange(iso7816.NewCommandAPDU(0x00, insSetCode, 0x00, 0x00, payload, 0)); err != nil {
		return err
	}

	s.challenge = nil
	return nil
}
