package nfc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	ResponseLength   = 1024
	StatusCodeLength = 2
)

// GetUIDCommand is the PC/SC pseudo APDU for reading the UID of a contactless card.
var GetUIDCommand = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

// StatusOK is the status word of a successful APDU.
var StatusOK = []byte{0x90, 0x00}

// UID is the unique identifier of a card.
type UID []byte

// String renders the UID as upper case, hyphen separated hex. E.g. 04-1A-2B-3C
func (u UID) String() string {
	if len(u) == 0 {
		return ""
	}
	parts := make([]string, len(u))
	for i, b := range u {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, "-")
}

// ParseUID decodes a hyphen separated hex string as produced by UID.String. Case is ignored.
func ParseUID(s string) (UID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return UID{}, nil
	}
	parts := strings.Split(s, "-")
	uid := make(UID, 0, len(parts))
	for _, p := range parts {
		if len(p) != 2 {
			return nil, fmt.Errorf("invalid UID byte %q in %q", p, s)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("invalid UID %q: %w", s, err)
		}
		uid = append(uid, b[0])
	}
	return uid, nil
}

// TrimStatus strips the trailing status word from a raw card response.
func TrimStatus(response []byte) ([]byte, error) {
	if len(response) < StatusCodeLength {
		return nil, ErrShortResponse
	}
	return response[:len(response)-StatusCodeLength], nil
}

// GetUID asks the connected card for its UID.
func GetUID(t Transmitter) (UID, error) {
	response := make([]byte, ResponseLength)
	n, err := t.Transmit(GetUIDCommand, response)
	if err != nil {
		var code uint32
		var sc StatusCoder
		if errors.As(err, &sc) {
			code = sc.StatusCode()
		}
		return nil, &TransmitError{Code: code, Err: err}
	}
	if n < 0 {
		n = 0
	} else if n > len(response) {
		n = len(response)
	}

	payload, err := TrimStatus(response[:n])
	if err != nil {
		return nil, &TransmitError{Err: err}
	}
	uid := make(UID, len(payload))
	copy(uid, payload)
	return uid, nil
}
