package cryptic

import (
	"bytes"
	"fmt"
)

// pkcs7Pad appends PKCS#7 padding to src so that its length is a multiple
// of blockSize. A full block is appended when src is already aligned.
func pkcs7Pad(src []byte, blockSize int) []byte {
	padding := blockSize - (len(src) % blockSize)
	return append(src, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad removes PKCS#7 padding from src. Every failure wraps
// ErrDecryptionFailed; the caller reports all of them identically.
func pkcs7Unpad(src []byte, blockSize int) ([]byte, error) {
	length := len(src)
	if length == 0 || length%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length %d", ErrDecryptionFailed, length)
	}

	padding := int(src[length-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("%w: invalid padding byte", ErrDecryptionFailed)
	}

	for i := length - padding; i < length; i++ {
		if src[i] != byte(padding) {
			return nil, fmt.Errorf("%w: malformed padding", ErrDecryptionFailed)
		}
	}
	return src[:length-padding], nil
}
