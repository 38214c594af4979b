// Package cryptic encrypts image files with a password into a single
// portable container and recovers the original bytes, filename and content
// type from it.
//
// # Overview
//
// The package has three layers:
//
//   - A cipher engine (AES-256-GCM, plus AES-256-CBC for reading legacy
//     containers) and password-based key derivation (Argon2id or
//     PBKDF2-SHA256).
//   - A versioned container codec (Encode, Decode, Inspect).
//   - Orchestrators (Encrypter.Encrypt, Encrypter.Decrypt, Encrypter.Rekey)
//     and a file layer (FileCrypter) that works on any absfs.FileSystem.
//
// # Basic Usage
//
//	container, err := cryptic.Encrypt(imageBytes, "cat.png", "image/png", "correct-horse-battery")
//	if err != nil {
//	    panic(err)
//	}
//
//	payload, err := cryptic.Decrypt(container, "correct-horse-battery")
//	if errors.Is(err, cryptic.ErrDecryption) {
//	    // wrong password or corrupted file
//	}
//
// With explicit settings:
//
//	config := cryptic.DefaultConfig()
//	config.KDF = cryptic.KDFParams{
//	    Algorithm:   cryptic.KDFArgon2id,
//	    Iterations:  4,
//	    Memory:      256 * 1024, // 256 MB
//	    Parallelism: 4,
//	}
//
//	fc, err := cryptic.NewFileCrypter(config)
//	res, err := fc.EncryptFile(fs, "/photos/cat.png", "/vault", password)
//
// # Container Format
//
// Every container starts with a one-byte format version. Integers are
// little-endian.
//
//	v0  version | salt (16) | iv (16) | ciphertext
//	v1  version | salt (16) | iv (16) | tag (16) | ciphertext
//	v2  version | kdf (10) | salt (16) | iv (16) | tag (16) | ciphertext
//
// The v2 kdf field is algorithm (1), iterations (4), memory in KiB (4) and
// parallelism (1). Everything in a v2 header before the tag is
// authenticated as GCM associated data. v0 containers use AES-256-CBC with
// PKCS#7 padding and no tag; they are decrypted but never written. v0 and
// v1 derive keys with PBKDF2-SHA256 at a fixed iteration count (10,000 and
// 600,000); the v0 count is below current guidance and Rekey upgrades such
// containers.
//
// The ciphertext is the encryption of a serialized payload: format (1),
// filename length (2), filename, content type length (2), content type,
// timestamp in Unix milliseconds (8), data length (8), data.
//
// # Errors
//
// Encrypt reports specific problems (ErrInvalidPassword, *ValidationError).
// Decrypt reports ErrMalformedContainer for bytes that are not a container
// and ErrDecryption for everything else; a wrong password and a tampered
// container cannot be told apart.
//
// # Security Considerations
//
// Salts and IVs come from the Config's RandomSource (crypto/rand unless
// replaced) and are fresh for every container. Derived keys and serialized
// plaintext are zeroed after use. Decode bounds the KDF work factor a
// header may request, so a hostile container cannot demand unbounded
// memory or time.
package cryptic
