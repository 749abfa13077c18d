package ykoath

import (
	"errors"
	"fmt"
	"time"

	"github.com/gregLibert/ykoath/pkg/iso7816"
	"github.com/gregLibert/ykoath/pkg/tlv"
)

// State names the authentication state of a session.
type State int

const (
	// StateUnselected means no successful Select has happened yet, or a
	// transport failure invalidated the session.
	StateUnselected State = iota

	// StateLocked means the applet is selected and password-protected;
	// only Validate is allowed.
	StateLocked

	// StateUnlocked means credential operations are allowed.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateUnselected:
		return "unselected"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Version is the applet firmware version reported by Select.
type Version struct {
	Major byte
	Minor byte
	Patch byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Session drives the OATH applet on a single token. It is an explicit state
// machine (see the package documentation); all methods are synchronous and a
// Session must not be shared between goroutines without external locking.
type Session struct {
	client *iso7816.Client

	state     State
	version   Version
	deviceID  []byte
	challenge []byte
}

// NewSession wraps a raw card connection. The session starts Unselected;
// call Select before anything else.
//
// Response continuation uses the applet's own SEND REMAINING instruction
// rather than the interindustry GET RESPONSE.
func NewSession(card iso7816.Transmitter) *Session {
	client := iso7816.NewClient(card)
	client.Continue = sendRemaining
	return &Session{client: client}
}

func sendRemaining(_ *iso7816.CommandAPDU, pending int) *iso7816.CommandAPDU {
	return iso7816.NewCommandAPDU(0x00, insSendRemaining, 0x00, 0x00, nil, pending)
}

// SetTimeout bounds each card exchange. Zero (the default) waits forever.
func (s *Session) SetTimeout(d time.Duration) {
	s.client.Timeout = d
}

// State reports the session's current authentication state.
func (s *Session) State() State {
	return s.state
}

// Version reports the applet firmware version. Valid after Select.
func (s *Session) Version() Version {
	return s.version
}

// DeviceID is the token's unique identifier from the select response. It
// doubles as the PBKDF2 salt for password derivation. Valid after Select.
func (s *Session) DeviceID() []byte {
	return s.deviceID
}

// Protected reports whether the token requires password validation. Valid
// after Select.
func (s *Session) Protected() bool {
	return len(s.challenge) > 0
}

// Select selects the OATH applet and initializes the session. It returns
// ErrNoApplet when the token does not host the applet. On success the
// session is Locked if the device reports password protection, Unlocked
// otherwise.
//
// Select is also the recovery path: after a transport failure (or a device
// reset by another client) call Select again to re-establish the session.
func (s *Session) Select() error {
	data, err := s.exchange(iso7816.SelectByAID(0x00, AID))
	if err != nil {
		return err
	}

	var resp struct {
		Version   []byte `tlv:"79"`
		Name      []byte `tlv:"71"`
		Challenge []byte `tlv:"74"`
		Algorithm []byte `tlv:"7B"`
	}
	if err := tlv.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if len(resp.Version) != 3 {
		return fmt.Errorf("%w: version field of %d bytes", ErrMalformedResponse, len(resp.Version))
	}

	s.version = Version{resp.Version[0], resp.Version[1], resp.Version[2]}
	s.deviceID = resp.Name
	s.challenge = resp.Challenge

	if len(s.challenge) > 0 {
		s.state = StateLocked
	} else {
		s.state = StateUnlocked
	}
	return nil
}

// requireUnlocked gates credential operations on the session state.
func (s *Session) requireUnlocked() error {
	switch s.state {
	case StateUnselected:
		return ErrNotSelected
	case StateLocked:
		return ErrAuthRequired
	default:
		return nil
	}
}

// exchange sends one command and returns the concatenated response body.
// Device errors are mapped onto the package's error taxonomy. A transport
// failure tears the session back to Unselected: a torn exchange leaves the
// applet state unknown, so the only safe continuation is a fresh Select.
// Busy rejections do not tear the session; the in-flight exchange is intact.
func (s *Session) exchange(cmd *iso7816.CommandAPDU) ([]byte, error) {
	trace, err := s.client.Send(cmd)
	if err != nil {
		if errors.Is(err, iso7816.ErrBusy) {
			return nil, err
		}
		s.state = StateUnselected
		s.challenge = nil
		return nil, &TransportError{Err: err}
	}

	if err := statusError(trace.Status()); err != nil {
		return nil, err
	}
	return trace.Data(), nil
}
