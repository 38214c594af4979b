package cryptic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestCipherEngines(t *testing.T) {
	iv := bytes.Repeat([]byte{0x01}, IVSize)
	ad := []byte("header")

	tests := []struct {
		name    string
		version FormatVersion
		tagSize int
	}{
		{"aes-256-cbc", VersionLegacy, 0},
		{"aes-256-gcm v1", Version1, TagSize},
		{"aes-256-gcm v2", Version2, TagSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewCipherEngine(tt.version, testKey(0x42))
			require.NoError(t, err)
			require.Equal(t, IVSize, engine.IVSize())
			require.Equal(t, tt.tagSize, engine.TagSize())

			for _, size := range []int{0, 1, 15, 16, 17, 1000} {
				plaintext := bytes.Repeat([]byte{0x5A}, size)
				original := bytes.Clone(plaintext)

				ct, tag, err := engine.Encrypt(iv, plaintext, ad)
				require.NoError(t, err)
				require.Len(t, tag, tt.tagSize)
				require.Equal(t, original, plaintext, "plaintext must not be modified")

				got, err := engine.Decrypt(iv, ct, tag, ad)
				require.NoError(t, err)
				require.Equal(t, original, append([]byte{}, got...))
			}
		})
	}
}

func TestCipherEngineDeterministic(t *testing.T) {
	iv := bytes.Repeat([]byte{0x07}, IVSize)
	for _, v := range []FormatVersion{VersionLegacy, Version2} {
		engine, err := NewCipherEngine(v, testKey(0x01))
		require.NoError(t, err)

		ct1, tag1, err := engine.Encrypt(iv, []byte("same input"), nil)
		require.NoError(t, err)
		ct2, tag2, err := engine.Encrypt(iv, []byte("same input"), nil)
		require.NoError(t, err)
		require.Equal(t, ct1, ct2)
		require.Equal(t, tag1, tag2)
	}
}

func TestAESGCMEngineAuthentication(t *testing.T) {
	engine, err := NewAESGCMEngine(testKey(0x42))
	require.NoError(t, err)

	iv := bytes.Repeat([]byte{0x01}, IVSize)
	ad := []byte("header")
	ct, tag, err := engine.Encrypt(iv, []byte("image bytes"), ad)
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() ([]byte, error)
	}{
		{"flipped ciphertext", func() ([]byte, error) {
			bad := bytes.Clone(ct)
			bad[0] ^= 1
			return engine.Decrypt(iv, bad, tag, ad)
		}},
		{"flipped tag", func() ([]byte, error) {
			bad := bytes.Clone(tag)
			bad[15] ^= 1
			return engine.Decrypt(iv, ct, bad, ad)
		}},
		{"short tag", func() ([]byte, error) {
			return engine.Decrypt(iv, ct, tag[:12], ad)
		}},
		{"other additional data", func() ([]byte, error) {
			return engine.Decrypt(iv, ct, tag, []byte("HEADER"))
		}},
		{"other iv", func() ([]byte, error) {
			return engine.Decrypt(bytes.Repeat([]byte{0x02}, IVSize), ct, tag, ad)
		}},
		{"other key", func() ([]byte, error) {
			other, err := NewAESGCMEngine(testKey(0x43))
			require.NoError(t, err)
			return other.Decrypt(iv, ct, tag, ad)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			require.Nil(t, got)
			require.ErrorIs(t, err, ErrAuthFailed)
		})
	}

	// Decrypt must not write into the caller's buffers
	ctCopy := bytes.Clone(ct)
	_, err = engine.Decrypt(iv, ct[:len(ct):len(ct)], tag, ad)
	require.NoError(t, err)
	require.Equal(t, ctCopy, ct)
}

func TestAESCBCEngineErrors(t *testing.T) {
	engine, err := NewAESCBCEngine(testKey(0x42))
	require.NoError(t, err)

	iv := bytes.Repeat([]byte{0x01}, IVSize)

	_, err = engine.Decrypt(iv, nil, nil, nil)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = engine.Decrypt(iv, make([]byte, 17), nil, nil)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	// CBC has no tag; a changed IV byte flips the same plaintext bit, which
	// here turns the padding byte 6 into 9
	ct, _, err := engine.Encrypt(iv, []byte("0123456789"), nil)
	require.NoError(t, err)
	require.Len(t, ct, 16)
	badIV := bytes.Clone(iv)
	badIV[15] ^= 0x0F
	_, err = engine.Decrypt(badIV, ct, nil, nil)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCipherEngineInvalidInput(t *testing.T) {
	_, err := NewAESGCMEngine(make([]byte, 16))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewAESCBCEngine(nil)
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewCipherEngine(FormatVersion(5), testKey(1))
	require.ErrorIs(t, err, ErrUnsupportedCipher)

	gcm, err := NewAESGCMEngine(testKey(1))
	require.NoError(t, err)
	_, _, err = gcm.Encrypt(make([]byte, 12), []byte("x"), nil)
	require.ErrorIs(t, err, ErrInvalidIV)

	cbc, err := NewAESCBCEngine(testKey(1))
	require.NoError(t, err)
	_, _, err = cbc.Encrypt(make([]byte, 8), []byte("x"), nil)
	require.ErrorIs(t, err, ErrInvalidIV)
}

func TestPKCS7(t *testing.T) {
	for size := 0; size <= 32; size++ {
		padded := pkcs7Pad(bytes.Repeat([]byte{0xEE}, size), 16)
		require.Zero(t, len(padded)%16)
		require.Greater(t, len(padded), size)

		got, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		require.Len(t, got, size)
	}

	bad := [][]byte{
		nil,
		make([]byte, 15),
		append(bytes.Repeat([]byte{1}, 15), 0),
		append(bytes.Repeat([]byte{1}, 15), 17),
		append(bytes.Repeat([]byte{1}, 14), 3, 2),
	}
	for _, b := range bad {
		_, err := pkcs7Unpad(b, 16)
		require.ErrorIs(t, err, ErrDecryptionFailed)
	}
}
