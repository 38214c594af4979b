package cryptic

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hako/durafmt"
	log "github.com/sirupsen/logrus"
)

// Encrypter turns payloads into containers and back. It holds no state
// between calls and is safe for concurrent use when its random source is.
type Encrypter struct {
	version FormatVersion
	kdf     KDFParams
	random  RandomSource
	log     log.FieldLogger
}

// NewEncrypter creates an Encrypter from config
func NewEncrypter(config *Config) (*Encrypter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Encrypter{
		version: config.Version,
		kdf:     config.effectiveKDF(),
		random:  config.random(),
		log:     config.logger(),
	}, nil
}

// Version returns the format version new containers are written with
func (e *Encrypter) Version() FormatVersion {
	return e.version
}

// KDF returns the key derivation parameters new containers are written with
func (e *Encrypter) KDF() KDFParams {
	return e.kdf
}

// Encrypt validates password against the password policy, then encrypts
// the payload data together with its filename, content type and timestamp.
// Nothing is returned unless every step succeeds.
func (e *Encrypter) Encrypt(p *Payload, password string) ([]byte, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	plaintext, err := marshalPayload(p)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(plaintext)

	return e.seal(plaintext, password)
}

func (e *Encrypter) seal(plaintext []byte, password string) ([]byte, error) {
	// Salt and IV are read separately so they are independent values
	salt, err := randomBytes(e.random, SaltSize)
	if err != nil {
		return nil, NewEncryptionError("salt", err)
	}
	iv, err := randomBytes(e.random, IVSize)
	if err != nil {
		return nil, NewEncryptionError("iv", err)
	}

	c := &Container{
		Version: e.version,
		KDF:     e.kdf,
		Salt:    salt,
		IV:      iv,
	}

	pw := []byte(password)
	defer zeroBytes(pw)

	key, err := e.deriveKey(pw, c)
	if err != nil {
		return nil, NewEncryptionError("key", err)
	}
	defer zeroBytes(key)

	engine, err := NewCipherEngine(c.Version, key)
	if err != nil {
		return nil, NewEncryptionError("cipher", err)
	}

	c.Ciphertext, c.Tag, err = engine.Encrypt(c.IV, plaintext, c.associatedData())
	if err != nil {
		return nil, NewEncryptionError("seal", err)
	}

	out, err := Encode(c)
	if err != nil {
		return nil, NewEncryptionError("encode", err)
	}

	e.log.WithFields(log.Fields{
		"version": c.Version.String(),
		"size":    len(out),
	}).Debug("sealed container")

	return out, nil
}

// Decrypt recovers the payload from container bytes. Structural problems
// return a *MalformedContainerError; every failure after that, whether a
// wrong password, tampering or a corrupt payload, returns the same
// *DecryptionError.
func (e *Encrypter) Decrypt(container []byte, password string) (*Payload, error) {
	c, err := Decode(container)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(password) == "" {
		return nil, &PasswordError{Reason: "password cannot be empty"}
	}

	plaintext, err := e.open(c, password)
	if err != nil {
		e.log.WithField("version", c.Version.String()).Debug("container did not open")
		return nil, &DecryptionError{}
	}
	defer zeroBytes(plaintext)

	p, err := unmarshalPayload(plaintext)
	if err != nil {
		e.log.WithField("version", c.Version.String()).Debug("container did not open")
		return nil, &DecryptionError{}
	}

	return p, nil
}

// open derives the key and runs the cipher. A panic in a cipher engine is
// reported as a decryption failure.
func (e *Encrypter) open(c *Container, password string) (plaintext []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			plaintext = nil
			err = fmt.Errorf("%w: panic in cipher engine: %v", ErrDecryptionFailed, r)
		}
	}()

	pw := []byte(password)
	defer zeroBytes(pw)

	key, err := e.deriveKey(pw, c)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	engine, err := NewCipherEngine(c.Version, key)
	if err != nil {
		return nil, err
	}

	return engine.Decrypt(c.IV, c.Ciphertext, c.Tag, c.associatedData())
}

func (e *Encrypter) deriveKey(password []byte, c *Container) ([]byte, error) {
	start := time.Now()
	key, err := DeriveKey(password, c.Salt, c.KDF)
	if err != nil {
		return nil, err
	}
	e.log.WithFields(log.Fields{
		"kdf":  c.KDF.String(),
		"took": durafmt.Parse(time.Since(start)).String(),
	}).Debug("derived key")
	return key, nil
}

// Rekey re-encrypts a container under newPassword, writing it with this
// Encrypter's version and KDF. Legacy containers come out upgraded.
func (e *Encrypter) Rekey(container []byte, oldPassword, newPassword string) ([]byte, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	p, err := e.Decrypt(container, oldPassword)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(p.Data)

	return e.Encrypt(p, newPassword)
}

var defaultEncrypter = sync.OnceValues(func() (*Encrypter, error) {
	return NewEncrypter(DefaultConfig())
})

// Encrypt encrypts data with the default configuration
func Encrypt(data []byte, filename, contentType, password string) ([]byte, error) {
	e, err := defaultEncrypter()
	if err != nil {
		return nil, err
	}
	return e.Encrypt(&Payload{
		Data:        data,
		Filename:    filename,
		ContentType: contentType,
	}, password)
}

// Decrypt decrypts a container with the default configuration. Containers
// of every supported version can be read, whatever KDF they were written with.
func Decrypt(container []byte, password string) (*Payload, error) {
	e, err := defaultEncrypter()
	if err != nil {
		return nil, err
	}
	return e.Decrypt(container, password)
}
