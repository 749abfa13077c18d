package tlv

import (
	"fmt"

	"github.com/moov-io/bertlv"
)

// New builds a single Entry. Convenience for composing command payloads.
func New(tag byte, value []byte) Entry {
	return Entry{Tag: tag, Value: value}
}

// Encode serializes entries into a command payload.
// Serialization goes through bertlv, which emits the single-byte tag,
// a BER length (long form 0x81/0x82 above 0x7F) and the raw value —
// the exact framing the applets expect for command data fields.
func Encode(entries ...Entry) ([]byte, error) {
	packets := make([]bertlv.TLV, 0, len(entries))
	for _, e := range entries {
		packets = append(packets, bertlv.TLV{
			Tag:   fmt.Sprintf("%02X", e.Tag),
			Value: e.Value,
		})
	}
	return bertlv.Encode(packets)
}
