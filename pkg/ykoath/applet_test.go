package ykoath

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// fakeApplet emulates the device side of the protocol for tests: it parses
// command APDUs byte by byte, keeps its own credential store, computes real
// HMACs and frames long responses with 61XX continuation statuses. The TLV
// handling here is deliberately hand-rolled so the tests do not trust the
// package's own codec.
type fakeApplet struct {
	deviceID []byte
	version  [3]byte

	// Password protection state. key is nil on unprotected devices.
	key       []byte
	challenge []byte
	retries   int
	unlocked  bool

	creds    []*fakeCredential
	capacity int // 0 = unlimited

	// fullResponse makes CALCULATE answer with the raw MAC (tag 0x75)
	// instead of a device-truncated code (tag 0x76).
	fullResponse bool

	// frameSize chunks responses to force SEND REMAINING continuation.
	frameSize int
	pending   []byte

	noApplet    bool
	failNext    error
	transmitted int
}

type fakeCredential struct {
	name    string
	key     []byte
	typ     Type
	alg     Algorithm
	digits  byte
	touch   bool
	counter uint64
}

func newFakeApplet() *fakeApplet {
	return &fakeApplet{
		deviceID: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01, 0x02, 0x03},
		version:  [3]byte{5, 4, 3},
	}
}

// protect provisions a password key the way SetPassword would, so tests can
// start from a locked device without going through SET CODE. The key is
// derived with the applet's own device ID as salt; the session may not have
// selected the applet yet, so its copy of the device ID cannot be used.
func (f *fakeApplet) protect(_ *Session, password string) {
	f.key = pbkdf2.Key([]byte(password), f.deviceID, keyIterations, keyLength, sha1.New)
}

func (f *fakeApplet) store(name string, secret []byte, typ Type, alg Algorithm, digits byte) *fakeCredential {
	cred := &fakeCredential{
		name:   name,
		key:    secret,
		typ:    typ,
		alg:    alg,
		digits: digits,
	}
	f.creds = append(f.creds, cred)
	return cred
}

func (f *fakeApplet) Transmit(raw []byte) ([]byte, error) {
	f.transmitted++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	if len(raw) < 4 {
		return nil, errors.New("runt command")
	}

	ins, p1, p2 := raw[1], raw[2], raw[3]
	var data []byte
	if len(raw) > 5 {
		lc := int(raw[4])
		if 5+lc > len(raw) {
			return nil, errors.New("lc exceeds command length")
		}
		data = raw[5 : 5+lc]
	}

	if ins == byte(insSendRemaining) {
		return f.frame(f.pending), nil
	}
	f.pending = nil

	switch ins {
	case 0xA4:
		if p1 == 0x04 { // select by DF name
			return f.frame(f.selectApplet(data)), nil
		}
		return f.frame(f.calculateAll(data)), nil
	case byte(insList):
		return f.frame(f.list()), nil
	case byte(insCalculate):
		return f.frame(f.calculate(data)), nil
	case byte(insValidate):
		return f.frame(f.validate(data)), nil
	case byte(insPut):
		return f.frame(f.put(data)), nil
	case byte(insDelete):
		return f.frame(f.delete(data)), nil
	case byte(insSetCode):
		return f.frame(f.setCode(data)), nil
	case byte(insReset):
		if p1 != 0xDE || p2 != 0xAD {
			return f.frame(status(0x6A, 0x80)), nil
		}
		f.creds = nil
		f.key = nil
		f.challenge = nil
		f.unlocked = true
		return f.frame(status(0x90, 0x00)), nil
	default:
		return f.frame(status(0x6D, 0x00)), nil
	}
}

// frame splits a full response (body + status) into continuation chunks when
// frameSize is set.
func (f *fakeApplet) frame(full []byte) []byte {
	body, sw := full[:len(full)-2], full[len(full)-2:]
	if f.frameSize <= 0 || len(body) <= f.frameSize {
		f.pending = nil
		return full
	}

	chunk := body[:f.frameSize]
	f.pending = append(body[f.frameSize:len(body):len(body)], sw...)

	remaining := len(f.pending) - 2
	if remaining > 0xFF {
		remaining = 0xFF
	}
	return append(append([]byte{}, chunk...), 0x61, byte(remaining))
}

func status(sw1, sw2 byte) []byte {
	return []byte{sw1, sw2}
}

func ftlv(tag byte, value []byte) []byte {
	out := []byte{tag, byte(len(value))}
	return append(out, value...)
}

func parseFields(data []byte) map[byte][]byte {
	fields := make(map[byte][]byte)
	for i := 0; i+2 <= len(data); {
		tag, length := data[i], int(data[i+1])
		fields[tag] = data[i+2 : i+2+length]
		i += 2 + length
	}
	return fields
}

func (f *fakeApplet) selectApplet(aid []byte) []byte {
	if f.noApplet || !bytes.Equal(aid, AID) {
		return status(0x6A, 0x82)
	}

	body := ftlv(0x79, f.version[:])
	body = append(body, ftlv(0x71, f.deviceID)...)
	if f.key != nil {
		f.challenge = []byte{1, 2, 3, 4, 5, 6, 7, 8}
		body = append(body, ftlv(0x74, f.challenge)...)
		body = append(body, ftlv(0x7B, []byte{0x01})...)
		f.unlocked = false
	} else {
		f.unlocked = true
	}
	return append(body, 0x90, 0x00)
}

func (f *fakeApplet) list() []byte {
	if !f.unlocked {
		return status(0x69, 0x82)
	}
	var body []byte
	for _, cred := range f.creds {
		entry := append([]byte{byte(cred.typ) | byte(cred.alg)}, cred.name...)
		body = append(body, ftlv(0x72, entry)...)
	}
	return append(body, 0x90, 0x00)
}

func (f *fakeApplet) find(name string) *fakeCredential {
	for _, cred := range f.creds {
		if cred.name == name {
			return cred
		}
	}
	return nil
}

func (f *fakeApplet) mac(cred *fakeCredential, challenge []byte) []byte {
	var h func() hash.Hash
	switch cred.alg {
	case SHA256:
		h = sha256.New
	case SHA512:
		h = sha512.New
	default:
		h = sha1.New
	}

	if cred.typ == HOTP {
		challenge = make([]byte, 8)
		binary.BigEndian.PutUint64(challenge, cred.counter)
		cred.counter++
	}

	m := hmac.New(h, cred.key)
	m.Write(challenge)
	return m.Sum(nil)
}

func (f *fakeApplet) codeEntry(cred *fakeCredential, challenge []byte) []byte {
	mac := f.mac(cred, challenge)
	if f.fullResponse {
		return ftlv(0x75, append([]byte{cred.digits}, mac...))
	}
	offset := mac[len(mac)-1] & 0x0F
	value := append([]byte{cred.digits}, mac[offset:offset+4]...)
	value[1] &= 0x7F
	return ftlv(0x76, value)
}

func (f *fakeApplet) calculate(data []byte) []byte {
	if !f.unlocked {
		return status(0x69, 0x82)
	}
	fields := parseFields(data)
	cred := f.find(string(fields[0x71]))
	if cred == nil {
		return status(0x69, 0x84)
	}
	if cred.touch {
		return status(0x69, 0x85)
	}
	return append(f.codeEntry(cred, fields[0x74]), 0x90, 0x00)
}

func (f *fakeApplet) calculateAll(data []byte) []byte {
	if !f.unlocked {
		return status(0x69, 0x82)
	}
	challenge := parseFields(data)[0x74]

	var body []byte
	for _, cred := range f.creds {
		body = append(body, ftlv(0x71, []byte(cred.name))...)
		switch {
		case cred.touch:
			body = append(body, ftlv(0x7C, nil)...)
		case cred.typ == HOTP:
			body = append(body, ftlv(0x77, []byte{cred.digits})...)
		default:
			body = append(body, f.codeEntry(cred, challenge)...)
		}
	}
	return append(body, 0x90, 0x00)
}

func (f *fakeApplet) validate(data []byte) []byte {
	fields := parseFields(data)

	expected := hmac.New(sha1.New, f.key)
	expected.Write(f.challenge)
	if !hmac.Equal(fields[0x75], expected.Sum(nil)) {
		if f.retries > 0 {
			return status(0x63, 0xC0|byte(f.retries))
		}
		return status(0x69, 0x84)
	}

	f.unlocked = true
	answer := hmac.New(sha1.New, f.key)
	answer.Write(fields[0x74])
	return append(ftlv(0x75, answer.Sum(nil)), 0x90, 0x00)
}

func (f *fakeApplet) put(data []byte) []byte {
	if !f.unlocked {
		return status(0x69, 0x82)
	}

	// PUT needs a positional parse: PROPERTY is a raw tag/value pair
	// without a length byte.
	i := 0
	next := func(tag byte) []byte {
		if i+2 > len(data) || data[i] != tag {
			return nil
		}
		length := int(data[i+1])
		value := data[i+2 : i+2+length]
		i += 2 + length
		return value
	}

	name := next(0x71)
	keyField := next(0x73)
	if name == nil || len(keyField) < 2 {
		return status(0x6A, 0x80)
	}

	cred := &fakeCredential{
		name:   string(name),
		typ:    Type(keyField[0] & 0xF0),
		alg:    Algorithm(keyField[0] & 0x0F),
		digits: keyField[1],
		key:    keyField[2:],
	}

	for i < len(data) {
		switch data[i] {
		case 0x78:
			cred.touch = data[i+1]&0x02 != 0
			i += 2
		case 0x7A:
			imf := next(0x7A)
			if len(imf) != 4 {
				return status(0x6A, 0x80)
			}
			cred.counter = uint64(binary.BigEndian.Uint32(imf))
		default:
			return status(0x6A, 0x80)
		}
	}

	if existing := f.find(cred.name); existing != nil {
		*existing = *cred
		return status(0x90, 0x00)
	}
	if f.capacity > 0 && len(f.creds) >= f.capacity {
		return status(0x6A, 0x84)
	}
	f.creds = append(f.creds, cred)
	return status(0x90, 0x00)
}

func (f *fakeApplet) delete(data []byte) []byte {
	if !f.unlocked {
		return status(0x69, 0x82)
	}
	name := string(parseFields(data)[0x71])
	for i, cred := range f.creds {
		if cred.name == name {
			f.creds = append(f.creds[:i], f.creds[i+1:]...)
			return status(0x90, 0x00)
		}
	}
	return status(0x69, 0x84)
}

func (f *fakeApplet) setCode(data []byte) []byte {
	if !f.unlocked {
		return status(0x69, 0x82)
	}
	fields := parseFields(data)

	keyField := fields[0x73]
	if len(keyField) == 0 {
		f.key = nil
		return status(0x90, 0x00)
	}

	key := keyField[1:]
	proof := hmac.New(sha1.New, key)
	proof.Write(fields[0x74])
	if !hmac.Equal(fields[0x75], proof.Sum(nil)) {
		return status(0x6A, 0x80)
	}

	f.key = append([]byte{}, key...)
	return status(0x90, 0x00)
}
