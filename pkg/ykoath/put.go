package ykoath

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"github.com/gregLibert/ykoath/pkg/iso7816"
	"github.com/gregLibert/ykoath/pkg/tlv"
)

// Put stores a credential on the device. The secret is the raw HMAC key
// (decode base32 before calling); a secret longer than the algorithm's block
// size is replaced by its digest, a shorter one is zero-padded, both per RFC
// 2104 so the device computes the same HMAC a software implementation would.
//
// Storing a name that already exists overwrites the existing credential.
// Put wipes its working copy of the secret before returning; the caller owns
// the buffer it passed in.
func (s *Session) Put(cred Credential, secret []byte) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if err := cred.validate(); err != nil {
		return err
	}

	key := shortenKey(secret, cred.Algorithm)
	defer wipe(key)

	keyValue := make([]byte, 0, 2+len(key))
	keyValue = append(keyValue, cred.typeAlgByte(), byte(cred.Digits))
	keyValue = append(keyValue, key...)
	defer wipe(keyValue)

	payload, err := tlv.Encode(
		tlv.New(tagName, []byte(cred.Name)),
		tlv.New(tagKey, keyValue),
	)
	if err != nil {
		return err
	}
	// The appends below may reallocate; wipe whatever buffer payload ends
	// up in, not the one it started in.
	defer func() { wipe(payload) }()

	// PROPERTY is a bare tag/value pair without a length byte.
	if cred.TouchRequired {
		payload = append(payload, tagProperty, propRequireTouch)
	}

	if cred.Type == HOTP && cred.Counter > 0 {
		var imf [4]byte
		binary.BigEndian.PutUint32(imf[:], cred.Counter)
		encoded, err := tlv.Encode(tlv.New(tagIMF, imf[:]))
		if err != nil {
			return err
		}
		payload = append(payload, encoded...)
	}

	_, err = s.exchange(iso7816.NewCommandAPDU(0x00, insPut, 0x00, 0x00, payload, 0))
	return err
}

// shortenKey normalizes a secret into a device key: digest oversized keys
// with the credential's own algorithm and zero-pad up to the applet's
// minimum. Always returns a fresh buffer the caller may wipe.
func shortenKey(secret []byte, alg Algorithm) []byte {
	var h hash.Hash
	switch alg {
	case SHA256:
		h = sha256.New()
	case SHA512:
		h = sha512.New()
	default:
		h = sha1.New()
	}

	if len(secret) > h.BlockSize() {
		h.Write(secret)
		secret = h.Sum(nil)
	}

	size := len(secret)
	if size < minKeyLength {
		size = minKeyLength
	}
	key := make([]byte, size)
	copy(key, secret)
	return key
}

// wipe zeroes a buffer holding key material.
func wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
