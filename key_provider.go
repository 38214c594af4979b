package cryptic

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// KDFAlgorithm identifies the password-based key derivation function
type KDFAlgorithm uint8

const (
	// KDFPBKDF2SHA256 is PBKDF2 with HMAC-SHA256
	KDFPBKDF2SHA256 KDFAlgorithm = 1
	// KDFArgon2id is the memory-hard Argon2id function (recommended)
	KDFArgon2id KDFAlgorithm = 2
)

// String returns the string representation of the KDF algorithm
func (a KDFAlgorithm) String() string {
	switch a {
	case KDFPBKDF2SHA256:
		return "pbkdf2-sha256"
	case KDFArgon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

// ParseKDFAlgorithm parses the String form of a KDF algorithm
func ParseKDFAlgorithm(s string) (KDFAlgorithm, error) {
	switch s {
	case "pbkdf2-sha256", "pbkdf2":
		return KDFPBKDF2SHA256, nil
	case "argon2id", "argon2":
		return KDFArgon2id, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKDF, s)
	}
}

// Work factor bounds. The minimums apply to new containers; the maximums
// bound the work a container header can demand from Decrypt.
const (
	DefaultPBKDF2Iterations = 600000
	MinPBKDF2Iterations     = 100000
	MaxPBKDF2Iterations     = 10000000

	DefaultArgon2Memory      = 64 * 1024 // KiB
	DefaultArgon2Iterations  = 3
	DefaultArgon2Parallelism = 4
	MaxArgon2Memory          = 1024 * 1024 // KiB (1 GiB)
	MaxArgon2Iterations      = 64

	// legacyPBKDF2Iterations is the implicit work factor of v0 containers
	legacyPBKDF2Iterations = 10000
)

// KDFParams contains the key derivation algorithm and its work factor.
// Memory (KiB) and Parallelism are only meaningful for Argon2id.
type KDFParams struct {
	Algorithm   KDFAlgorithm
	Iterations  uint32
	Memory      uint32
	Parallelism uint8
}

// DefaultArgon2idParams returns the parameters used for new containers
func DefaultArgon2idParams() KDFParams {
	return KDFParams{
		Algorithm:   KDFArgon2id,
		Iterations:  DefaultArgon2Iterations,
		Memory:      DefaultArgon2Memory,
		Parallelism: DefaultArgon2Parallelism,
	}
}

// DefaultPBKDF2Params returns PBKDF2-SHA256 parameters at the OWASP
// recommended iteration count
func DefaultPBKDF2Params() KDFParams {
	return KDFParams{
		Algorithm:  KDFPBKDF2SHA256,
		Iterations: DefaultPBKDF2Iterations,
	}
}

// implicitKDF returns the parameters that containers without a KDF header
// field were written with
func implicitKDF(v FormatVersion) KDFParams {
	if v == VersionLegacy {
		return KDFParams{Algorithm: KDFPBKDF2SHA256, Iterations: legacyPBKDF2Iterations}
	}
	return DefaultPBKDF2Params()
}

func (p KDFParams) String() string {
	switch p.Algorithm {
	case KDFArgon2id:
		return fmt.Sprintf("argon2id(t=%d, m=%dKiB, p=%d)", p.Iterations, p.Memory, p.Parallelism)
	case KDFPBKDF2SHA256:
		return fmt.Sprintf("pbkdf2-sha256(i=%d)", p.Iterations)
	default:
		return fmt.Sprintf("unknown(%d)", p.Algorithm)
	}
}

// Validate checks the parameters against the minimum work factor for new
// containers and the maximum accepted from headers
func (p KDFParams) Validate() error {
	if err := p.checkBounds(); err != nil {
		return err
	}
	switch p.Algorithm {
	case KDFPBKDF2SHA256:
		if p.Iterations < MinPBKDF2Iterations {
			return &ValidationError{
				Field:   "kdf.iterations",
				Value:   p.Iterations,
				Message: fmt.Sprintf("pbkdf2 iterations must be at least %d", MinPBKDF2Iterations),
			}
		}
	case KDFArgon2id:
		if p.Memory < DefaultArgon2Memory/4 {
			return &ValidationError{
				Field:   "kdf.memory",
				Value:   p.Memory,
				Message: fmt.Sprintf("argon2id memory must be at least %d KiB", DefaultArgon2Memory/4),
			}
		}
	}
	return nil
}

// checkBounds rejects parameters no container may carry, independent of
// the policy for new containers
func (p KDFParams) checkBounds() error {
	switch p.Algorithm {
	case KDFPBKDF2SHA256:
		if p.Iterations == 0 || p.Iterations > MaxPBKDF2Iterations {
			return &ValidationError{
				Field:   "kdf.iterations",
				Value:   p.Iterations,
				Message: fmt.Sprintf("pbkdf2 iterations must be between 1 and %d", MaxPBKDF2Iterations),
			}
		}
		if p.Memory != 0 || p.Parallelism != 0 {
			return &ValidationError{
				Field:   "kdf",
				Value:   p,
				Message: "pbkdf2 does not take memory or parallelism parameters",
			}
		}
	case KDFArgon2id:
		if p.Iterations == 0 || p.Iterations > MaxArgon2Iterations {
			return &ValidationError{
				Field:   "kdf.iterations",
				Value:   p.Iterations,
				Message: fmt.Sprintf("argon2id iterations must be between 1 and %d", MaxArgon2Iterations),
			}
		}
		if p.Parallelism == 0 {
			return &ValidationError{
				Field:   "kdf.parallelism",
				Value:   p.Parallelism,
				Message: "argon2id parallelism must be at least 1",
			}
		}
		if p.Memory < 8*uint32(p.Parallelism) || p.Memory > MaxArgon2Memory {
			return &ValidationError{
				Field:   "kdf.memory",
				Value:   p.Memory,
				Message: fmt.Sprintf("argon2id memory must be between %d and %d KiB", 8*uint32(p.Parallelism), MaxArgon2Memory),
			}
		}
	default:
		return &ValidationError{
			Field:   "kdf.algorithm",
			Value:   p.Algorithm,
			Message: "unsupported key derivation function",
			Err:     ErrUnsupportedKDF,
		}
	}
	return nil
}

// DeriveKey derives a KeySize-byte key from password and salt. The result
// is deterministic for fixed inputs. Callers own the returned key and
// should zero it once done.
func DeriveKey(password, salt []byte, params KDFParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, &PasswordError{Reason: "password cannot be empty"}
	}
	if len(salt) == 0 {
		return nil, NewValidationError("salt", 0, "salt cannot be empty")
	}
	if err := params.checkBounds(); err != nil {
		return nil, err
	}

	switch params.Algorithm {
	case KDFArgon2id:
		return argon2.IDKey(password, salt, params.Iterations, params.Memory, params.Parallelism, KeySize), nil
	case KDFPBKDF2SHA256:
		return pbkdf2.Key(password, salt, int(params.Iterations), KeySize, sha256.New), nil
	default:
		return nil, ErrUnsupportedKDF
	}
}
