// Package tlv provides utilities for parsing and mapping the tag-length-value
// records used by smart-card applets into Go structures using struct tags.
//
// The parser is deliberately flat (non-recursive). Security-token applets such
// as the YubiKey OATH applet assign single-byte tags in the 0x71-0x7C range to
// primitive payloads (names, challenges, HMAC responses). Those tag values have
// the BER "constructed" bit set, so a generic BER-TLV decoder would try to
// recurse into the payload bytes and mangle them. Responses are therefore
// scanned with Parse; command payloads, which the client builds itself, are
// serialized through github.com/moov-io/bertlv (see Encode).
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
)

// Entry is a single tag-length-value record.
type Entry struct {
	Tag   byte
	Value []byte
}

// String returns a compact hex representation, e.g. "74[0000000003145D8C]".
func (e Entry) String() string {
	return fmt.Sprintf("%02X[%s]", e.Tag, strings.ToUpper(hex.EncodeToString(e.Value)))
}

// Parse scans data as a flat sequence of tag-length-value records.
// Lengths follow BER rules: one byte below 0x80, or long form 0x81/0x82
// followed by the actual length in big-endian. A truncated record is an
// error, never silently dropped.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry

	for i := 0; i < len(data); {
		tag := data[i]
		i++

		if i >= len(data) {
			return nil, fmt.Errorf("truncated record: tag %02X without length", tag)
		}

		length := int(data[i])
		i++

		switch {
		case length == 0x81:
			if i >= len(data) {
				return nil, fmt.Errorf("truncated long-form length for tag %02X", tag)
			}
			length = int(data[i])
			i++
		case length == 0x82:
			if i+1 >= len(data) {
				return nil, fmt.Errorf("truncated long-form length for tag %02X", tag)
			}
			length = int(data[i])<<8 | int(data[i+1])
			i += 2
		case length > 0x80:
			return nil, fmt.Errorf("unsupported length encoding 0x%02X for tag %02X", length, tag)
		}

		if i+length > len(data) {
			return nil, fmt.Errorf("tag %02X declares %d bytes, only %d remain", tag, length, len(data)-i)
		}

		entries = append(entries, Entry{Tag: tag, Value: data[i : i+length]})
		i += length
	}

	return entries, nil
}

// Find returns the value of the first record carrying the given tag.
func Find(entries []Entry, tag byte) ([]byte, bool) {
	for _, e := range entries {
		if e.Tag == tag {
			return e.Value, true
		}
	}
	return nil, false
}

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

// Unmarshal parses raw TLV data and maps it into a target Go struct.
// Field mapping is driven by `tlv:"XX"` struct tags (hex tag value):
//
//   - []byte fields receive the raw value (last occurrence wins),
//   - [][]byte fields collect every occurrence in order,
//   - string fields receive the hex representation,
//   - types implementing Unmarshaler decode themselves.
func Unmarshal(data []byte, target interface{}) error {
	entries, err := Parse(data)
	if err != nil {
		return fmt.Errorf("tlv parse failed: %w", err)
	}
	return UnmarshalFromEntries(entries, target)
}

// UnmarshalFromEntries maps pre-parsed entries to a target struct.
// It supports multiple occurrences of the same tag if the target field is a slice.
func UnmarshalFromEntries(entries []Entry, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		tagConfig := fieldType.Tag.Get("tlv")

		if tagConfig == "" {
			continue
		}

		tagByte, err := parseTagConfig(tagConfig)
		if err != nil {
			return fmt.Errorf("field %s: %w", fieldType.Name, err)
		}

		for _, entry := range entries {
			if entry.Tag == tagByte {
				if err := mapEntryToField(entry, field); err != nil {
					return fmt.Errorf("field %s: %w", fieldType.Name, err)
				}
			}
		}
	}

	return nil
}

func parseTagConfig(config string) (byte, error) {
	raw, err := hex.DecodeString(strings.Split(config, ",")[0])
	if err != nil || len(raw) != 1 {
		return 0, fmt.Errorf("invalid tlv tag %q", config)
	}
	return raw[0], nil
}

// mapEntryToField dispatches the TLV data to the appropriate reflection logic.
func mapEntryToField(entry Entry, field reflect.Value) error {
	// If it's a slice (but not []byte), we grow the slice and decode into the new element
	if field.Kind() == reflect.Slice && !isByteSlice(field) {
		newElem := reflect.New(field.Type().Elem()).Elem()
		if err := decodeToValue(entry, newElem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, newElem))
		return nil
	}

	return decodeToValue(entry, field)
}

// decodeToValue handles the leaf-node decoding logic.
func decodeToValue(entry Entry, field reflect.Value) error {
	// 1. Custom Unmarshaler
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(entry.Value)
		}
	}

	// 2. Byte Slices
	if isByteSlice(field) {
		field.SetBytes(entry.Value)
		return nil
	}

	// 3. Strings (Hex representation)
	if field.Kind() == reflect.String {
		field.SetString(hex.EncodeToString(entry.Value))
		return nil
	}

	return fmt.Errorf("unsupported field kind %s", field.Kind())
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
