package cryptic

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// kdfFieldSize is the size of the v2 KDF field:
	// 1 byte (algorithm) + 4 bytes (iterations) + 4 bytes (memory) + 1 byte (parallelism)
	kdfFieldSize = 10

	// MinContainerSize is the smallest buffer any version can decode from
	MinContainerSize = 1 + SaltSize + IVSize
)

// Container is the decoded form of an encrypted container. Decode copies
// every field out of the input buffer, so a Container never aliases it.
type Container struct {
	Version    FormatVersion
	KDF        KDFParams // Stored in the header for v2, implied for older versions
	Salt       []byte
	IV         []byte
	Tag        []byte // Empty for VersionLegacy
	Ciphertext []byte
}

// HeaderSize returns the number of bytes preceding the ciphertext for a
// format version, or -1 for unknown versions
func HeaderSize(v FormatVersion) int {
	switch v {
	case VersionLegacy:
		return 1 + SaltSize + IVSize
	case Version1:
		return 1 + SaltSize + IVSize + TagSize
	case Version2:
		return 1 + kdfFieldSize + SaltSize + IVSize + TagSize
	default:
		return -1
	}
}

// associatedData returns the header bytes authenticated alongside the
// payload: everything before the tag for v2, nothing for older versions
func (c *Container) associatedData() []byte {
	if c.Version != Version2 {
		return nil
	}
	buf := make([]byte, 0, 1+kdfFieldSize+SaltSize+IVSize)
	buf = append(buf, byte(c.Version))
	buf = appendKDF(buf, c.KDF)
	buf = append(buf, c.Salt...)
	buf = append(buf, c.IV...)
	return buf
}

func appendKDF(buf []byte, p KDFParams) []byte {
	buf = append(buf, byte(p.Algorithm))
	buf = binary.LittleEndian.AppendUint32(buf, p.Iterations)
	buf = binary.LittleEndian.AppendUint32(buf, p.Memory)
	return append(buf, p.Parallelism)
}

// Validate checks that the container's fields have the sizes its version
// requires
func (c *Container) Validate() error {
	if !c.Version.Known() {
		return NewValidationError("version", c.Version, ErrUnsupportedVersion.Error())
	}
	if len(c.Salt) != SaltSize {
		return NewValidationError("salt", len(c.Salt), fmt.Sprintf("salt must be %d bytes", SaltSize))
	}
	if len(c.IV) != IVSize {
		return NewValidationError("iv", len(c.IV), fmt.Sprintf("iv must be %d bytes", IVSize))
	}
	if c.Version.Authenticated() {
		if len(c.Tag) != TagSize {
			return NewValidationError("tag", len(c.Tag), fmt.Sprintf("tag must be %d bytes", TagSize))
		}
	} else if len(c.Tag) != 0 {
		return NewValidationError("tag", len(c.Tag), "legacy containers carry no tag")
	}
	if c.Version == Version2 {
		if err := c.KDF.checkBounds(); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes c. The version byte always comes first so Decode can
// dispatch on it; the remaining header fields are fixed-width and the
// ciphertext takes the rest of the buffer.
func Encode(c *Container) ([]byte, error) {
	if c == nil {
		return nil, NewValidationError("container", nil, "container cannot be nil")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize(c.Version)+len(c.Ciphertext)))
	buf.WriteByte(byte(c.Version))
	if c.Version == Version2 {
		buf.Write(appendKDF(nil, c.KDF))
	}
	buf.Write(c.Salt)
	buf.Write(c.IV)
	if c.Version.Authenticated() {
		buf.Write(c.Tag)
	}
	buf.Write(c.Ciphertext)

	return buf.Bytes(), nil
}

// Decode parses container bytes. It only checks structure: a well-formed
// container encrypted under another password decodes without error.
func Decode(b []byte) (*Container, error) {
	if len(b) == 0 {
		return nil, newMalformedError("", "empty container")
	}

	version := FormatVersion(b[0])
	if !version.Known() {
		return nil, &MalformedContainerError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d", b[0]),
			Err:     ErrUnsupportedVersion,
		}
	}

	size := HeaderSize(version)
	if len(b) < size {
		return nil, newMalformedError("header",
			fmt.Sprintf("truncated: got %d bytes, need at least %d for %s", len(b), size, version))
	}

	c := &Container{Version: version}
	offset := 1

	if version == Version2 {
		field := b[offset : offset+kdfFieldSize]
		c.KDF = KDFParams{
			Algorithm:   KDFAlgorithm(field[0]),
			Iterations:  binary.LittleEndian.Uint32(field[1:5]),
			Memory:      binary.LittleEndian.Uint32(field[5:9]),
			Parallelism: field[9],
		}
		if err := c.KDF.checkBounds(); err != nil {
			return nil, &MalformedContainerError{
				Field:   "kdf",
				Message: err.Error(),
				Err:     err,
			}
		}
		offset += kdfFieldSize
	} else {
		c.KDF = implicitKDF(version)
	}

	c.Salt = bytes.Clone(b[offset : offset+SaltSize])
	offset += SaltSize

	c.IV = bytes.Clone(b[offset : offset+IVSize])
	offset += IVSize

	if version.Authenticated() {
		c.Tag = bytes.Clone(b[offset : offset+TagSize])
		offset += TagSize
	}

	c.Ciphertext = append([]byte{}, b[offset:]...)

	if version == VersionLegacy && (len(c.Ciphertext) == 0 || len(c.Ciphertext)%16 != 0) {
		return nil, newMalformedError("ciphertext",
			fmt.Sprintf("legacy ciphertext length %d is not a positive multiple of 16", len(c.Ciphertext)))
	}

	return c, nil
}

// Inspect decodes a container's header without a password
func Inspect(b []byte) (*ContainerInfo, error) {
	c, err := Decode(b)
	if err != nil {
		return nil, err
	}
	return &ContainerInfo{
		Version:        c.Version,
		Authenticated:  c.Version.Authenticated(),
		KDF:            c.KDF,
		CiphertextSize: len(c.Ciphertext),
	}, nil
}
