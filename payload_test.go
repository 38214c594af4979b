package cryptic

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarshalPayloadLayout(t *testing.T) {
	p := &Payload{
		Data:        []byte{9, 8, 7},
		Filename:    "a.png",
		ContentType: "image/png",
		Timestamp:   time.UnixMilli(1234),
	}

	b, err := marshalPayload(p)
	require.NoError(t, err)
	require.Len(t, b, payloadFixedSize+5+9+3)

	require.Equal(t, byte(payloadFormat), b[0])
	require.Equal(t, uint16(5), binary.LittleEndian.Uint16(b[1:3]))
	require.Equal(t, "a.png", string(b[3:8]))
	require.Equal(t, uint16(9), binary.LittleEndian.Uint16(b[8:10]))
	require.Equal(t, "image/png", string(b[10:19]))
	require.Equal(t, uint64(1234), binary.LittleEndian.Uint64(b[19:27]))
	require.Equal(t, uint64(3), binary.LittleEndian.Uint64(b[27:35]))
	require.Equal(t, []byte{9, 8, 7}, b[35:])
}

func TestPayloadRoundTrip(t *testing.T) {
	p := &Payload{
		Data:        []byte("not really a gif"),
		Filename:    "holiday.final.gif",
		ContentType: "image/gif",
		Timestamp:   time.UnixMilli(1700000000000),
	}

	b, err := marshalPayload(p)
	require.NoError(t, err)

	got, err := unmarshalPayload(b)
	require.NoError(t, err)
	require.Equal(t, p.Data, got.Data)
	require.Equal(t, p.Filename, got.Filename)
	require.Equal(t, p.ContentType, got.ContentType)
	require.True(t, p.Timestamp.Equal(got.Timestamp))

	// The payload owns its data
	b[len(b)-1] ^= 0xFF
	require.Equal(t, p.Data, got.Data)
}

func TestPayloadZeroTimestamp(t *testing.T) {
	b, err := marshalPayload(&Payload{Data: []byte{1}})
	require.NoError(t, err)

	got, err := unmarshalPayload(b)
	require.NoError(t, err)
	require.True(t, got.Timestamp.IsZero())
}

func TestUnmarshalPayloadErrors(t *testing.T) {
	valid, err := marshalPayload(samplePayload())
	require.NoError(t, err)

	withDataLen := func(n uint64) []byte {
		b := append([]byte{}, valid...)
		binary.LittleEndian.PutUint64(b[len(b)-len(samplePayload().Data)-8:], n)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown format", append([]byte{2}, valid[1:]...)},
		{"truncated filename", valid[:5]},
		{"truncated fixed fields", valid[:len(valid)-len(samplePayload().Data)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
		{"data length too small", withDataLen(1)},
		{"data length too large", withDataLen(1 << 40)},
		{"data length overflow", withDataLen(^uint64(0))},
		{"invalid utf-8 filename", []byte{1, 1, 0, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := unmarshalPayload(tt.data)
			require.Nil(t, p)
			require.ErrorIs(t, err, ErrSerialization)
		})
	}
}

func FuzzUnmarshalPayload(f *testing.F) {
	valid, err := marshalPayload(samplePayload())
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add([]byte{1})

	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := unmarshalPayload(data)
		if err != nil {
			require.ErrorIs(t, err, ErrSerialization)
			return
		}
		out, err := marshalPayload(p)
		require.NoError(t, err)
		require.Len(t, out, len(data))
	})
}
