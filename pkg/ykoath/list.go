package ykoath

import (
	"fmt"

	"github.com/gregLibert/ykoath/pkg/iso7816"
	"github.com/gregLibert/ykoath/pkg/tlv"
)

// List enumerates the credentials stored on the device, in device order.
// Device order is stable across calls, so it can back a display without
// client-side sorting.
func (s *Session) List() ([]Credential, error) {
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}

	data, err := s.exchange(iso7816.NewCommandAPDU(0x00, insList, 0x00, 0x00, nil, 0))
	if err != nil {
		return nil, err
	}

	entries, err := tlv.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	creds := make([]Credential, 0, len(entries))
	for _, entry := range entries {
		if entry.Tag != tagNameList {
			return nil, fmt.Errorf("%w: unexpected tag 0x%02X in list response", ErrMalformedResponse, entry.Tag)
		}
		cred, err := parseListEntry(entry.Value)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}
