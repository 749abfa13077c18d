package ykoath

import (
	"github.com/gregLibert/ykoath/pkg/iso7816"
	"github.com/gregLibert/ykoath/pkg/tlv"
)

// Delete removes the named credential from the device. Deleting a name that
// does not exist is an error (ErrNoSuchCredential), never a silent no-op.
func (s *Session) Delete(name string) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}

	payload, err := tlv.Encode(tlv.New(tagName, []byte(name)))
	if err != nil {
		return err
	}

	_, err = s.exchange(iso7816.NewCommandAPDU(0x00, insDelete, 0x00, 0x00, payload, 0))
	return err
}
