package cryptic

import (
	"time"
)

const (
	// Extension is the file extension given to encrypted containers
	Extension = ".cryptic"

	// SaltSize is the size of the key derivation salt in bytes
	SaltSize = 16

	// IVSize is the size of the cipher IV/nonce in bytes
	IVSize = 16

	// TagSize is the size of the authentication tag in bytes
	TagSize = 16

	// KeySize is the size of derived keys in bytes (AES-256)
	KeySize = 32

	// MinPasswordLength is the minimum number of characters accepted for
	// new containers
	MinPasswordLength = 8

	// DefaultMaxFileSize is the largest input file accepted by the file layer (50 MB)
	DefaultMaxFileSize = 50 * 1024 * 1024
)

// DefaultContentTypes lists the image types accepted for encryption
var DefaultContentTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif"}

// FormatVersion identifies the byte layout of a container
type FormatVersion uint8

const (
	// VersionLegacy is the unauthenticated AES-256-CBC layout with an
	// implicit PBKDF2 work factor. It is read-only.
	VersionLegacy FormatVersion = iota
	// Version1 adds an AES-256-GCM tag; the KDF is still implicit
	Version1
	// Version2 stores the KDF algorithm and work factor in the header and
	// authenticates the whole header
	Version2

	// CurrentVersion is written by Encrypt
	CurrentVersion = Version2
)

// String returns the string representation of the format version
func (v FormatVersion) String() string {
	switch v {
	case VersionLegacy:
		return "v0 (legacy, aes-256-cbc)"
	case Version1:
		return "v1 (aes-256-gcm)"
	case Version2:
		return "v2 (aes-256-gcm, explicit kdf)"
	default:
		return "unknown"
	}
}

// Authenticated reports whether containers of this version carry a tag
func (v FormatVersion) Authenticated() bool {
	return v == Version1 || v == Version2
}

// Known reports whether v is a layout this package can decode
func (v FormatVersion) Known() bool {
	return v <= Version2
}

// Payload is the plaintext protected by a container. Filename and
// ContentType are encrypted together with Data.
type Payload struct {
	Data        []byte
	Filename    string
	ContentType string

	// Timestamp is optional and stored with millisecond precision
	Timestamp time.Time
}

// ContainerInfo is the password-free view of a container returned by Inspect
type ContainerInfo struct {
	Version        FormatVersion
	Authenticated  bool
	KDF            KDFParams
	CiphertextSize int
}
