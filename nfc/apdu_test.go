package nfc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransmitter struct {
	response []byte
	err      error
	n        int
	cmd      []byte
	bufSize  int
}

func (f *fakeTransmitter) Transmit(cmd, resp []byte) (int, error) {
	f.cmd = cmd
	f.bufSize = len(resp)
	if f.err != nil {
		return 0, f.err
	}
	if f.n != 0 {
		return f.n, nil
	}
	return copy(resp, f.response), nil
}

type codedErr uint32

func (c codedErr) Error() string      { return "coded" }
func (c codedErr) StatusCode() uint32 { return uint32(c) }

func TestTrimStatus(t *testing.T) {
	for size := 0; size <= 16; size++ {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		raw := append(append([]byte{}, payload...), 0x90, 0x00)

		trimmed, err := TrimStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, payload, trimmed, "payload of %d bytes", size)
	}
}

func TestTrimStatusShortResponse(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {0x90}} {
		_, err := TrimStatus(raw)
		assert.ErrorIs(t, err, ErrShortResponse)
	}
}

func TestGetUID(t *testing.T) {
	tests := []struct {
		name      string
		tr        *fakeTransmitter
		assertion func(t *testing.T, uid UID, err error)
	}{
		{
			"success",
			&fakeTransmitter{response: []byte{0x04, 0x1A, 0x2B, 0x3C, 0x90, 0x00}},
			func(t *testing.T, uid UID, err error) {
				require.NoError(t, err)
				assert.Equal(t, UID{0x04, 0x1A, 0x2B, 0x3C}, uid)
				assert.Equal(t, "04-1A-2B-3C", uid.String())
			},
		},
		{
			"status word is always trimmed",
			&fakeTransmitter{response: []byte{0x01, 0x02, 0x63, 0x00}},
			func(t *testing.T, uid UID, err error) {
				require.NoError(t, err)
				assert.Equal(t, UID{0x01, 0x02}, uid)
			},
		},
		{
			"transmit failure carries the status code",
			&fakeTransmitter{err: codedErr(0x80100016)},
			func(t *testing.T, uid UID, err error) {
				var te *TransmitError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, uint32(0x80100016), te.Code)
				assert.Nil(t, uid)
			},
		},
		{
			"transmit failure without status code",
			&fakeTransmitter{err: errors.New("card removed")},
			func(t *testing.T, uid UID, err error) {
				var te *TransmitError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, uint32(0), te.Code)
				assert.Contains(t, err.Error(), "card removed")
			},
		},
		{
			"short response",
			&fakeTransmitter{response: []byte{0x90}},
			func(t *testing.T, uid UID, err error) {
				var te *TransmitError
				require.ErrorAs(t, err, &te)
				assert.ErrorIs(t, err, ErrShortResponse)
			},
		},
		{
			"length reported beyond the buffer",
			&fakeTransmitter{n: 4096},
			func(t *testing.T, uid UID, err error) {
				require.NoError(t, err)
				assert.Len(t, uid, ResponseLength-StatusCodeLength)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			uid, err := GetUID(tc.tr)
			assert.Equal(t, GetUIDCommand, tc.tr.cmd)
			assert.GreaterOrEqual(t, tc.tr.bufSize, 1024)
			tc.assertion(t, uid, err)
		})
	}
}

func TestUIDRoundTrip(t *testing.T) {
	uids := []UID{
		{},
		{0x00},
		{0x04, 0x1A, 0x2B, 0x3C},
		{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x99},
	}
	for _, uid := range uids {
		parsed, err := ParseUID(uid.String())
		require.NoError(t, err)
		assert.Equal(t, uid, parsed)
	}

	parsed, err := ParseUID("04-1a-2b-3c")
	require.NoError(t, err)
	assert.Equal(t, UID{0x04, 0x1A, 0x2B, 0x3C}, parsed)
}

func TestParseUIDInvalid(t *testing.T) {
	for _, s := range []string{"041A", "04-1", "04--1A", "zz-00", "04-1A-"} {
		_, err := ParseUID(s)
		assert.Error(t, err, s)
	}
}

func TestReaderNotFoundError(t *testing.T) {
	var err error = &ReaderNotFoundError{Msg: "none"}
	assert.ErrorIs(t, err, ErrReaderNotFound)
	assert.Equal(t, "none", err.Error())
}
