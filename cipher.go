package cryptic

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// CipherEngine encrypts and decrypts whole buffers under one derived key.
// Implementations are deterministic for a given key, IV and plaintext, so
// an IV must never be reused with the same key.
type CipherEngine interface {
	// Encrypt returns the ciphertext and, for authenticated engines, the tag
	Encrypt(iv, plaintext, additionalData []byte) (ciphertext, tag []byte, err error)

	// Decrypt verifies the tag (if any) and returns the plaintext
	Decrypt(iv, ciphertext, tag, additionalData []byte) ([]byte, error)

	// IVSize returns the size of IVs in bytes
	IVSize() int

	// TagSize returns the authentication tag size, 0 for unauthenticated engines
	TagSize() int
}

// AESGCMEngine implements CipherEngine using AES-256-GCM with a 16-byte
// nonce and a detached 16-byte tag
type AESGCMEngine struct {
	aead cipher.AEAD
}

// NewAESGCMEngine creates a new AES-256-GCM cipher engine
func NewAESGCMEngine(key []byte) (*AESGCMEngine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: AES-256 requires a %d-byte key, got %d bytes", ErrInvalidKey, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMEngine{aead: aead}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM
func (e *AESGCMEngine) Encrypt(iv, plaintext, additionalData []byte) ([]byte, []byte, error) {
	if len(iv) != e.IVSize() {
		return nil, nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidIV, e.IVSize(), len(iv))
	}

	sealed := e.aead.Seal(nil, iv, plaintext, additionalData)
	split := len(sealed) - e.TagSize()
	return sealed[:split:split], sealed[split:], nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (e *AESGCMEngine) Decrypt(iv, ciphertext, tag, additionalData []byte) ([]byte, error) {
	if len(iv) != e.IVSize() {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidIV, e.IVSize(), len(iv))
	}
	if len(tag) != e.TagSize() {
		return nil, ErrAuthFailed
	}

	// Open takes ciphertext||tag; build it in a fresh buffer so the
	// caller's container is never written to
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, iv, sealed, additionalData)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// IVSize returns the nonce size (16 bytes)
func (e *AESGCMEngine) IVSize() int {
	return e.aead.NonceSize()
}

// TagSize returns the authentication tag size (16 bytes)
func (e *AESGCMEngine) TagSize() int {
	return e.aead.Overhead()
}

// AESCBCEngine implements CipherEngine using AES-256-CBC with PKCS#7
// padding. It provides no integrity and only exists to read legacy
// containers.
type AESCBCEngine struct {
	block cipher.Block
}

// NewAESCBCEngine creates a new AES-256-CBC cipher engine
func NewAESCBCEngine(key []byte) (*AESCBCEngine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: AES-256 requires a %d-byte key, got %d bytes", ErrInvalidKey, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &AESCBCEngine{block: block}, nil
}

// Encrypt encrypts plaintext using AES-256-CBC. additionalData is ignored.
func (e *AESCBCEngine) Encrypt(iv, plaintext, _ []byte) ([]byte, []byte, error) {
	if len(iv) != e.IVSize() {
		return nil, nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidIV, e.IVSize(), len(iv))
	}

	padded := pkcs7Pad(append([]byte(nil), plaintext...), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(e.block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil, nil
}

// Decrypt decrypts ciphertext using AES-256-CBC and strips the padding
func (e *AESCBCEngine) Decrypt(iv, ciphertext, _, _ []byte) ([]byte, error) {
	if len(iv) != e.IVSize() {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidIV, e.IVSize(), len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d",
			ErrDecryptionFailed, len(ciphertext), aes.BlockSize)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(e.block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

// IVSize returns the CBC IV size (16 bytes)
func (e *AESCBCEngine) IVSize() int {
	return aes.BlockSize
}

// TagSize returns 0; CBC carries no tag
func (e *AESCBCEngine) TagSize() int {
	return 0
}

// NewCipherEngine creates the cipher engine a format version is written with
func NewCipherEngine(version FormatVersion, key []byte) (CipherEngine, error) {
	switch version {
	case VersionLegacy:
		return NewAESCBCEngine(key)
	case Version1, Version2:
		return NewAESGCMEngine(key)
	default:
		return nil, ErrUnsupportedCipher
	}
}
