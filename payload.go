package cryptic

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// payloadFormat is the first byte of every serialized payload
const payloadFormat = 1

// payloadFixedSize is the size of the serialized payload without the
// variable-length fields:
// 1 byte (format) + 2 bytes (filename length) + 2 bytes (content type length) +
// 8 bytes (timestamp) + 8 bytes (data length) = 21 bytes
const payloadFixedSize = 21

// marshalPayload serializes p into one length-prefixed buffer
func marshalPayload(p *Payload) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPayload
	}
	if err := validateMetadata("filename", p.Filename); err != nil {
		return nil, err
	}
	if err := validateMetadata("content_type", p.ContentType); err != nil {
		return nil, err
	}

	var millis int64
	if !p.Timestamp.IsZero() {
		millis = p.Timestamp.UnixMilli()
	}

	buf := make([]byte, 0, payloadFixedSize+len(p.Filename)+len(p.ContentType)+len(p.Data))
	buf = append(buf, payloadFormat)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(p.Filename)))
	buf = append(buf, p.Filename...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(p.ContentType)))
	buf = append(buf, p.ContentType...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(millis))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(p.Data)))
	buf = append(buf, p.Data...)
	return buf, nil
}

func validateMetadata(field, value string) error {
	if len(value) > math.MaxUint16 {
		return &ValidationError{
			Field:   field,
			Value:   len(value),
			Message: fmt.Sprintf("must be at most %d bytes", math.MaxUint16),
		}
	}
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// payloadReader walks a serialized payload, recording the first failure
type payloadReader struct {
	buf []byte
	err error
}

func (r *payloadReader) next(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf) {
		r.err = fmt.Errorf("%w: %s overruns buffer", ErrSerialization, field)
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *payloadReader) uint16(field string) int {
	b := r.next(2, field)
	if b == nil {
		return 0
	}
	return int(binary.LittleEndian.Uint16(b))
}

func (r *payloadReader) uint64(field string) uint64 {
	b := r.next(8, field)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *payloadReader) text(field string) string {
	b := r.next(r.uint16(field+" length"), field)
	if r.err == nil && !utf8.Valid(b) {
		r.err = fmt.Errorf("%w: %s is not valid UTF-8", ErrSerialization, field)
	}
	return string(b)
}

// unmarshalPayload is the inverse of marshalPayload. Any inconsistency,
// including trailing bytes, wraps ErrSerialization.
func unmarshalPayload(b []byte) (*Payload, error) {
	r := &payloadReader{buf: b}

	format := r.next(1, "format")
	if r.err == nil && format[0] != payloadFormat {
		return nil, fmt.Errorf("%w: unknown payload format %d", ErrSerialization, format[0])
	}

	p := &Payload{}
	p.Filename = r.text("filename")
	p.ContentType = r.text("content type")
	millis := int64(r.uint64("timestamp"))
	size := r.uint64("data length")
	if r.err == nil && size != uint64(len(r.buf)) {
		return nil, fmt.Errorf("%w: data length %d does not match remaining %d bytes",
			ErrSerialization, size, len(r.buf))
	}
	data := r.next(int(size), "data")
	if r.err != nil {
		return nil, r.err
	}

	p.Data = append([]byte{}, data...)
	if millis != 0 {
		p.Timestamp = time.UnixMilli(millis)
	}
	return p, nil
}
