// Package reader bridges PC/SC smart card readers to the transport layer.
//
// It wraps the platform PC/SC stack behind a Card type that satisfies
// iso7816.Transmitter, so the protocol packages never touch scard directly
// and tests can substitute a fake card.
package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ebfe/scard"
)

// ErrNoReader is returned when no matching smart card reader is attached.
var ErrNoReader = errors.New("no smart card reader found")

// Card is an open connection to a card in a PC/SC reader. It owns both the
// reader connection and the PC/SC context; Close releases both.
type Card struct {
	ctx  *scard.Context
	card *scard.Card
	name string
}

// List names the attached smart card readers.
func List() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("listing readers: %w", err)
	}
	return readers, nil
}

// Connect opens the named reader. An empty name picks the first reader whose
// name contains "yubi" (case-insensitive), falling back to the first reader
// attached; a non-empty name must match a substring of exactly the reader to
// use.
func Connect(name string) (*Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		if err != nil {
			return nil, fmt.Errorf("listing readers: %w", err)
		}
		return nil, ErrNoReader
	}

	chosen, ok := pick(readers, name)
	if !ok {
		ctx.Release()
		return nil, fmt.Errorf("%w: no reader matching %q", ErrNoReader, name)
	}

	// Accept either protocol; YubiKeys speak T=1 but some reader stacks
	// report T=0.
	card, err := ctx.Connect(chosen, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connecting to %q: %w", chosen, err)
	}

	return &Card{ctx: ctx, card: card, name: chosen}, nil
}

// pick resolves a reader name filter against the attached readers.
func pick(readers []string, filter string) (string, bool) {
	if filter == "" {
		for _, r := range readers {
			if strings.Contains(strings.ToLower(r), "yubi") {
				return r, true
			}
		}
		return readers[0], true
	}

	for _, r := range readers {
		if strings.Contains(strings.ToLower(r), strings.ToLower(filter)) {
			return r, true
		}
	}
	return "", false
}

// Name reports the PC/SC name of the connected reader.
func (c *Card) Name() string {
	return c.name
}

// Transmit sends one command APDU and returns the raw response.
func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	return c.card.Transmit(cmd)
}

// Close disconnects from the card and releases the PC/SC context.
func (c *Card) Close() error {
	err := c.card.Disconnect(scard.LeaveCard)
	if relErr := c.ctx.Release(); err == nil {
		err = relErr
	}
	return err
}
