package cryptic

import (
	"bytes"
	"testing"

	"github.com/dustin/go-humanize"
)

var benchmarkSizes = []int{
	1024,             // 1 KB
	64 * 1024,        // 64 KB
	1024 * 1024,      // 1 MB
	10 * 1024 * 1024, // 10 MB
}

// Benchmark AES-256-GCM throughput without key derivation
func BenchmarkAESGCM_Encrypt(b *testing.B) {
	engine, err := NewAESGCMEngine(testKey(0x01))
	if err != nil {
		b.Fatal(err)
	}
	iv := make([]byte, IVSize)

	for _, size := range benchmarkSizes {
		data := bytes.Repeat([]byte{0x5A}, size)
		b.Run(humanize.IBytes(uint64(size)), func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := engine.Encrypt(iv, data, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark a full container round trip with a cheap KDF, so the cost is
// serialization and encryption
func BenchmarkEncryptDecrypt(b *testing.B) {
	e := newTestEncrypter(b)

	for _, size := range benchmarkSizes {
		p := &Payload{
			Data:        bytes.Repeat([]byte{0x5A}, size),
			Filename:    "bench.png",
			ContentType: "image/png",
		}
		b.Run(humanize.IBytes(uint64(size)), func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				container, err := e.Encrypt(p, "correct-horse-battery")
				if err != nil {
					b.Fatal(err)
				}
				if _, err := e.Decrypt(container, "correct-horse-battery"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark the default key derivation settings
func BenchmarkDeriveKey(b *testing.B) {
	salt := make([]byte, SaltSize)
	for _, params := range []KDFParams{DefaultArgon2idParams(), DefaultPBKDF2Params(), implicitKDF(VersionLegacy)} {
		b.Run(params.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := DeriveKey([]byte("correct-horse-battery"), salt, params); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
