package iso7816

// SELECT COMMAND LOGIC (ISO 7816-4):
// The SELECT command (INS 'A4') opens a file (MF, DF, or EF) or an application.
//
// P1 (Selection Method):
// Indicates how the file is targeted. Application selection uses "by DF name",
// where the data field carries the application identifier (AID).
//
// P2 (Selection Control):
// Controls the response content and the file occurrence. First-or-only
// occurrence with FCI template response is the interoperable default for
// applet selection, and what the OATH applet expects.

// SelectionMethod defines how the file is targeted (P1).
type SelectionMethod byte

const (
	SelectByFileID SelectionMethod = 0x00
	SelectByDFName SelectionMethod = 0x04 // Select by AID
	SelectPathMF   SelectionMethod = 0x08
)

// NewSelectCommand creates a generic SELECT command.
//
// T=0 Protocol Compatibility: when sending data (Case 3) we MUST leave Le
// unset; Lc and Le cannot be sent simultaneously. The card responds with
// '61 XX' (bytes available) and the Client retrieves them.
func NewSelectCommand(cla byte, method SelectionMethod, p2 byte, data []byte) *CommandAPDU {
	ne := 0
	if len(data) == 0 {
		ne = MaxShortLe
	}

	return NewCommandAPDU(cla, INS_SELECT, byte(method), p2, data, ne)
}

// SelectByAID creates a SELECT command targeting an application by its AID.
func SelectByAID(cla byte, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, 0x00, aid)
}
