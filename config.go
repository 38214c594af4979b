package cryptic

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config contains settings for an Encrypter and the file layer built on it
type Config struct {
	// Version written by Encrypt. Version1 always uses its implicit KDF.
	Version FormatVersion

	// KDF is the key derivation used for new Version2 containers
	KDF KDFParams

	// MaxFileSize bounds the input files the file layer accepts (bytes)
	MaxFileSize int64

	// ContentTypes lists the accepted image MIME types; empty accepts any image/*
	ContentTypes []string

	// Parallel controls batch processing
	Parallel ParallelConfig

	// LogLevel is a logrus level, used when Logger is nil
	LogLevel uint32

	// Random supplies salts and IVs; defaults to crypto/rand
	Random RandomSource

	// Logger receives structured logs; defaults to a discarding logger
	Logger log.FieldLogger
}

// DefaultConfig returns the settings used when no configuration is given
func DefaultConfig() *Config {
	return &Config{
		Version:      CurrentVersion,
		KDF:          DefaultArgon2idParams(),
		MaxFileSize:  DefaultMaxFileSize,
		ContentTypes: append([]string(nil), DefaultContentTypes...),
		Parallel:     DefaultParallelConfig(),
		LogLevel:     uint32(log.InfoLevel),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Version != Version1 && c.Version != Version2 {
		return &ValidationError{
			Field:   "version",
			Value:   c.Version,
			Message: "new containers must use version 1 or 2",
			Err:     ErrUnsupportedVersion,
		}
	}
	if c.Version == Version2 {
		if err := c.KDF.Validate(); err != nil {
			return err
		}
	}
	if c.MaxFileSize < 0 {
		return NewValidationError("max_file_size", c.MaxFileSize, "max file size cannot be negative")
	}
	if err := c.Parallel.Validate(); err != nil {
		return err
	}
	return nil
}

// effectiveKDF returns the KDF parameters Encrypt writes for this config
func (c *Config) effectiveKDF() KDFParams {
	if c.Version == Version2 {
		return c.KDF
	}
	return implicitKDF(c.Version)
}

func (c *Config) logger() log.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func (c *Config) random() RandomSource {
	if c.Random != nil {
		return c.Random
	}
	return defaultRandomSource()
}

// GetLogLevel converts the level string to its corresponding int value. It
// returns an error if the level is invalid.
func GetLogLevel(level string) (uint32, error) {
	var l uint32
	switch strings.ToLower(level) {
	case "debug":
		l = uint32(log.DebugLevel)
	case "info":
		l = uint32(log.InfoLevel)
	case "warn":
		l = uint32(log.WarnLevel)
	case "error":
		l = uint32(log.ErrorLevel)
	default:
		return 0, fmt.Errorf("invalid log.level setting %q", level)
	}
	return l, nil
}

// LoadConfig creates a Config with default settings and applies any
// settings from the given configuration file. An empty path returns the
// defaults.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()
	if configFile == "" {
		return config, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
	}

	if err := parseConfig(config, v); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func parseConfig(config *Config, v *viper.Viper) error { // nolint: gocyclo
	if v.IsSet("version") {
		config.Version = FormatVersion(v.GetUint32("version"))
	}

	if v.IsSet("log.level") {
		level, err := GetLogLevel(v.GetString("log.level"))
		if err != nil {
			return err
		}
		config.LogLevel = level
	}

	if v.IsSet("kdf.algorithm") {
		alg, err := ParseKDFAlgorithm(v.GetString("kdf.algorithm"))
		if err != nil {
			return err
		}
		if alg != config.KDF.Algorithm {
			if alg == KDFPBKDF2SHA256 {
				config.KDF = DefaultPBKDF2Params()
			} else {
				config.KDF = DefaultArgon2idParams()
			}
		}
	}

	if v.IsSet("kdf.iterations") {
		config.KDF.Iterations = v.GetUint32("kdf.iterations")
	}

	if v.IsSet("kdf.memory") {
		mem, err := ParseMemoryKiB(v.GetString("kdf.memory"))
		if err != nil {
			return err
		}
		config.KDF.Memory = mem
	}

	if v.IsSet("kdf.parallelism") {
		config.KDF.Parallelism = uint8(v.GetUint("kdf.parallelism"))
	}

	if v.IsSet("files.max.size") {
		size, err := humanize.ParseBytes(v.GetString("files.max.size"))
		if err != nil {
			return fmt.Errorf("invalid files.max.size: %w", err)
		}
		config.MaxFileSize = int64(size)
	}

	if v.IsSet("files.content.types") {
		config.ContentTypes = v.GetStringSlice("files.content.types")
	}

	if v.IsSet("parallel.enabled") {
		config.Parallel.Enabled = v.GetBool("parallel.enabled")
	}

	if v.IsSet("parallel.max.workers") {
		config.Parallel.MaxWorkers = v.GetInt("parallel.max.workers")
	}

	if v.IsSet("parallel.min.files") {
		config.Parallel.MinFilesForParallel = v.GetInt("parallel.min.files")
	}

	return nil
}

// ParseMemoryKiB parses an Argon2 memory size. Bare numbers are KiB;
// suffixed values ("64MiB", "1GB") are converted from bytes.
func ParseMemoryKiB(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}

	b, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid memory value %q: %w", s, err)
	}
	kib := b / 1024
	if kib > MaxArgon2Memory {
		return 0, fmt.Errorf("memory value %q exceeds %s", s, humanize.IBytes(MaxArgon2Memory*1024))
	}
	return uint32(kib), nil
}
