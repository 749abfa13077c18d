package iso7816

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// CLIENT & PROTOCOL LOGIC:
// The Client acts as a high-level driver over the physical connection.
// It implements the automatic handling of ISO 7816-3 transport behaviors that are
// often exposed to the application layer in T=0 protocols:
//
// 1. "61 XX" (Response Available):
//    The card indicates that XX bytes are waiting. The client automatically generates
//    and sends a continuation command to retrieve them. ISO 7816-4 defines
//    GET RESPONSE (0xC0) for this, but some applets mandate their own instruction
//    (the YubiKey OATH applet uses SEND REMAINING, 0xA5), so the builder is pluggable.
//
// 2. "6C XX" (Wrong Length):
//    The card indicates that the expected length (Le) was incorrect and suggests XX.
//    The client automatically re-sends the original command with Le = XX.
//
// The Send() method returns a Trace, a log of all atomic transactions that occurred
// to fulfill the logical request. Trace.Data() is the concatenated response body.
//
// CONCURRENCY:
// A physical card can serve exactly one exchange at a time. The Client enforces this
// by construction: a second Send while one is in flight is a caller error and fails
// immediately with ErrBusy instead of queuing.

var (
	// ErrBusy is returned when a Send is issued while another exchange is in flight.
	ErrBusy = errors.New("exchange already in flight on this client")

	// ErrTimeout is returned when the card did not answer within the configured
	// I/O timeout. The exchange is torn; the card state is undefined and the
	// applet must be re-selected before further use.
	ErrTimeout = errors.New("card did not respond within the I/O timeout")
)

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// ContinueFunc builds the continuation command issued after a 61XX status.
// prev is the command that triggered the continuation, pending the number of
// bytes the card reports as available.
type ContinueFunc func(prev *CommandAPDU, pending int) *CommandAPDU

// GetResponse is the default ContinueFunc, issuing the interindustry
// GET RESPONSE instruction on the same class as the original command.
func GetResponse(prev *CommandAPDU, pending int) *CommandAPDU {
	return NewCommandAPDU(prev.Cla, INS_GET_RESPONSE, 0x00, 0x00, nil, pending)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter

	// Continue builds the continuation command for 61XX statuses.
	// GetResponse is used when nil.
	Continue ContinueFunc

	// Timeout bounds a single physical exchange. Zero means no bound.
	Timeout time.Duration

	inFlight atomic.Bool
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
// It fails immediately with ErrBusy if another exchange is in flight.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.inFlight.Store(false)

	return c.send(cmd)
}

func (c *Client) send(cmd *CommandAPDU) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	currentTx := Transaction{
		Command:  cmd,
		Response: resp,
	}

	trace := Trace{currentTx}

	status := resp.Status

	// Case 61XX: More data available -> Issue continuation command
	if status.HasMoreData() {
		next := c.Continue
		if next == nil {
			next = GetResponse
		}

		subTrace, err := c.send(next(cmd, status.Pending()))
		if err != nil {
			return trace, err
		}

		trace = append(trace, subTrace...)
		return trace, nil
	}

	// Case 6CXX: Wrong Length -> Re-issue original command with correct Le
	if status.SW1() == 0x6C {
		// Clone command to update Le without mutating the original pointer
		newCmd := *cmd
		newCmd.Ne = int(status.SW2())

		subTrace, err := c.send(&newCmd)
		if err != nil {
			return trace, err
		}

		trace = append(trace, subTrace...)
		return trace, nil
	}

	return trace, nil
}

// transmit performs one physical exchange, applying the I/O timeout if set.
// A timed-out exchange is abandoned, not retried: the card may still answer the
// stale command later, so the session on top of this client must be re-selected.
func (c *Client) transmit(cmd []byte) ([]byte, error) {
	if c.Timeout <= 0 {
		return c.Card.Transmit(cmd)
	}

	type result struct {
		resp []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		resp, err := c.Card.Transmit(cmd)
		done <- result{resp, err}
	}()

	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-timer.C:
		return nil, ErrTimeout
	}
}
