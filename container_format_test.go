package cryptic

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func testContainer(v FormatVersion) *Container {
	c := &Container{
		Version:    v,
		KDF:        implicitKDF(v),
		Salt:       bytes.Repeat([]byte{0xAA}, SaltSize),
		IV:         bytes.Repeat([]byte{0xBB}, IVSize),
		Ciphertext: bytes.Repeat([]byte{0xCC}, 32),
	}
	if v.Authenticated() {
		c.Tag = bytes.Repeat([]byte{0xDD}, TagSize)
	}
	if v == Version2 {
		c.KDF = DefaultArgon2idParams()
	}
	return c
}

func TestHeaderSize(t *testing.T) {
	require.Equal(t, 33, HeaderSize(VersionLegacy))
	require.Equal(t, 49, HeaderSize(Version1))
	require.Equal(t, 59, HeaderSize(Version2))
	require.Equal(t, -1, HeaderSize(FormatVersion(3)))
	require.Equal(t, HeaderSize(VersionLegacy), MinContainerSize)
}

func TestEncodeLayout(t *testing.T) {
	c := testContainer(Version2)
	out, err := Encode(c)
	require.NoError(t, err)
	require.Len(t, out, HeaderSize(Version2)+len(c.Ciphertext))

	require.Equal(t, byte(Version2), out[0])
	require.Equal(t, byte(KDFArgon2id), out[1])
	require.Equal(t, uint32(DefaultArgon2Iterations), binary.LittleEndian.Uint32(out[2:6]))
	require.Equal(t, uint32(DefaultArgon2Memory), binary.LittleEndian.Uint32(out[6:10]))
	require.Equal(t, byte(DefaultArgon2Parallelism), out[10])
	require.Equal(t, c.Salt, out[11:27])
	require.Equal(t, c.IV, out[27:43])
	require.Equal(t, c.Tag, out[43:59])
	require.Equal(t, c.Ciphertext, out[59:])

	// The associated data is exactly the header before the tag
	require.Equal(t, out[:43], c.associatedData())
}

func TestEncodeDecode(t *testing.T) {
	for _, v := range []FormatVersion{VersionLegacy, Version1, Version2} {
		t.Run(v.String(), func(t *testing.T) {
			c := testContainer(v)
			out, err := Encode(c)
			require.NoError(t, err)

			got, err := Decode(out)
			require.NoError(t, err)
			require.Equal(t, c, got)

			// Decode copies fields out of the input
			out[HeaderSize(v)] ^= 0xFF
			out[1] ^= 0xFF
			require.Equal(t, c, got)
		})
	}
}

func TestDecodeLegacyHasNoTag(t *testing.T) {
	c := testContainer(VersionLegacy)
	out, err := Encode(c)
	require.NoError(t, err)
	require.Len(t, out, 1+SaltSize+IVSize+len(c.Ciphertext))

	got, err := Decode(out)
	require.NoError(t, err)
	require.Empty(t, got.Tag)
	require.Nil(t, got.associatedData())
}

func TestEncodeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Container)
	}{
		{"unknown version", func(c *Container) { c.Version = 9 }},
		{"short salt", func(c *Container) { c.Salt = c.Salt[:8] }},
		{"long iv", func(c *Container) { c.IV = append(c.IV, 0) }},
		{"missing tag", func(c *Container) { c.Tag = nil }},
		{"unknown kdf", func(c *Container) { c.KDF.Algorithm = 7 }},
		{"zero iterations", func(c *Container) { c.KDF.Iterations = 0 }},
		{"memory too large", func(c *Container) { c.KDF.Memory = MaxArgon2Memory + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContainer(Version2)
			tt.modify(c)
			_, err := Encode(c)
			require.True(t, IsValidationError(err))
		})
	}

	legacy := testContainer(VersionLegacy)
	legacy.Tag = make([]byte, TagSize)
	_, err := Encode(legacy)
	require.True(t, IsValidationError(err))

	_, err = Encode(nil)
	require.True(t, IsValidationError(err))
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := Encode(testContainer(Version2))
	require.NoError(t, err)

	kdf := func(p KDFParams) []byte {
		b := bytes.Clone(valid)
		copy(b[1:], appendKDF(nil, p))
		return b
	}

	tests := []struct {
		name  string
		data  []byte
		field string
	}{
		{"empty", nil, ""},
		{"unknown version", []byte{3, 0, 0}, "version"},
		{"max version", append([]byte{0xFF}, valid[1:]...), "version"},
		{"truncated v2", valid[:HeaderSize(Version2)-1], "header"},
		{"unknown kdf", kdf(KDFParams{Algorithm: 0, Iterations: 3, Memory: 65536, Parallelism: 4}), "kdf"},
		{"argon2 zero parallelism", kdf(KDFParams{Algorithm: KDFArgon2id, Iterations: 3, Memory: 65536}), "kdf"},
		{"argon2 memory too large", kdf(KDFParams{Algorithm: KDFArgon2id, Iterations: 3, Memory: 0xFFFFFFFF, Parallelism: 4}), "kdf"},
		{"argon2 iterations too large", kdf(KDFParams{Algorithm: KDFArgon2id, Iterations: 1 << 20, Memory: 65536, Parallelism: 4}), "kdf"},
		{"pbkdf2 iterations too large", kdf(KDFParams{Algorithm: KDFPBKDF2SHA256, Iterations: MaxPBKDF2Iterations + 1}), "kdf"},
		{"pbkdf2 with memory", kdf(KDFParams{Algorithm: KDFPBKDF2SHA256, Iterations: 1000, Memory: 1}), "kdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Decode(tt.data)
			require.Nil(t, c)
			require.ErrorIs(t, err, ErrMalformedContainer)

			var me *MalformedContainerError
			require.ErrorAs(t, err, &me)
			require.Equal(t, tt.field, me.Field)
		})
	}
}

func TestDecodeUnknownVersionIsUnsupported(t *testing.T) {
	_, err := Decode([]byte{42})
	require.ErrorIs(t, err, ErrUnsupportedVersion)
	require.ErrorIs(t, err, ErrMalformedContainer)
}

func TestInspect(t *testing.T) {
	for _, v := range []FormatVersion{VersionLegacy, Version1, Version2} {
		t.Run(v.String(), func(t *testing.T) {
			c := testContainer(v)
			out, err := Encode(c)
			require.NoError(t, err)

			info, err := Inspect(out)
			require.NoError(t, err)
			require.Equal(t, &ContainerInfo{
				Version:        v,
				Authenticated:  v != VersionLegacy,
				KDF:            c.KDF,
				CiphertextSize: len(c.Ciphertext),
			}, info)
		})
	}

	_, err := Inspect([]byte{0x10})
	require.ErrorIs(t, err, ErrMalformedContainer)
}

func FuzzDecode(f *testing.F) {
	for _, v := range []FormatVersion{VersionLegacy, Version1, Version2} {
		out, err := Encode(testContainer(v))
		if err != nil {
			f.Fatal(err)
		}
		f.Add(out)
	}
	f.Add([]byte{})
	f.Add([]byte{2})

	f.Fuzz(func(t *testing.T, data []byte) {
		c, err := Decode(data)
		if err != nil {
			require.ErrorIs(t, err, ErrMalformedContainer)
			return
		}
		out, err := Encode(c)
		require.NoError(t, err)
		require.Equal(t, data, out)
	})
}
