package ykoath

import (
	"github.com/gregLibert/ykoath/pkg/iso7816"
)

// Reset wipes the applet: all credentials and the password are erased. The
// P1/P2 values double as a confirmation magic; there is no further prompt on
// the device, so callers must confirm with the user first.
//
// Reset works from the Locked state: it is the recovery path for a forgotten
// password. On success the session is Unlocked and unprotected.
func (s *Session) Reset() error {
	if s.state == StateUnselected {
		return ErrNotSelected
	}

	if _, err := s.exchange(iso7816.NewCommandAPDU(0x00, insReset, 0xDE, 0xAD, nil, 0)); err != nil {
		return err
	}

	s.state = StateUnlocked
	s.challenge = nil
	return nil
}
