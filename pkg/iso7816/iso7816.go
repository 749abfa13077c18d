/*
Package iso7816 implements the APDU (Application Protocol Data Unit) plumbing required to talk to smart-card applets according to the ISO/IEC 7816 standard.

This package provides the fundamental building blocks for APDU communication: Command and Response structures, Status Word (SW) analysis, and a transport Client that drives the multi-frame response protocol.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x63CX: Warning, X is a retry counter (e.g. remaining password attempts).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# Multi-frame responses

A single logical response may span several physical exchanges. After each frame the
card reports 61XX ("XX more bytes available") and the host must ask for the rest.
ISO 7816-4 defines GET RESPONSE (0xC0) for this, but some applets define their own
continuation instruction (the YubiKey OATH applet uses SEND REMAINING, 0xA5). The
Client therefore takes a pluggable continuation command builder.

# Usage Example

	client := iso7816.NewClient(card)

	trace, err := client.Send(iso7816.SelectByAID(0x00, aid))
	if err != nil {
	    log.Fatal(err)
	}

	// The concatenated body of all frames, and the final status word.
	body := trace.Data()
	if !trace.Status().IsSuccess() {
	    log.Fatalf("select failed: %s", trace.Status().Verbose())
	}
*/
package iso7816
