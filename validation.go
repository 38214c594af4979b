package cryptic

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"unicode/utf16"

	"github.com/dustin/go-humanize"
)

// Input validation for the caller-facing rules: password policy and the
// checks the file layer applies before handing bytes to the core

// ValidatePassword enforces the policy for new containers: not blank and
// at least MinPasswordLength characters, counted in UTF-16 code units so
// that passwords accepted by existing clients stay valid
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return &PasswordError{Reason: "password cannot be empty"}
	}
	if passwordLength(password) < MinPasswordLength {
		return &PasswordError{
			Reason: fmt.Sprintf("password must be at least %d characters long", MinPasswordLength),
		}
	}
	return nil
}

func passwordLength(password string) int {
	n := 0
	for _, r := range password {
		n += utf16.RuneLen(r)
	}
	return n
}

// ValidateFileSize checks that size does not exceed max bytes
func ValidateFileSize(size, max int64) error {
	if size < 0 {
		return &ValidationError{
			Field:   "size",
			Value:   size,
			Message: "size cannot be negative",
		}
	}
	if max > 0 && size > max {
		return &ValidationError{
			Field: "size",
			Value: size,
			Message: fmt.Sprintf("file size %s exceeds the %s limit",
				humanize.IBytes(uint64(size)), humanize.IBytes(uint64(max))),
		}
	}
	return nil
}

// ValidateContentType checks contentType against the allowed list. An
// empty list accepts any image/* type.
func ValidateContentType(contentType string, allowed []string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return &ValidationError{
			Field:   "content_type",
			Value:   contentType,
			Message: "unrecognized content type",
			Err:     err,
		}
	}

	if len(allowed) == 0 {
		if strings.HasPrefix(mediaType, "image/") {
			return nil
		}
	} else {
		for _, a := range allowed {
			if strings.EqualFold(a, mediaType) {
				return nil
			}
		}
	}

	return &ValidationError{
		Field:   "content_type",
		Value:   contentType,
		Message: fmt.Sprintf("%s is not a supported image type", mediaType),
	}
}

// ValidateContainerName checks that name carries the container extension
func ValidateContainerName(name string) error {
	if name == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		return &ValidationError{
			Field:   "path",
			Value:   name,
			Message: fmt.Sprintf("expected a %s file", Extension),
		}
	}
	return nil
}

// DetectContentType returns the MIME type for a file, from its extension
// when known and from its leading bytes otherwise
func DetectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	ct := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

// ContainerName returns the output name for an encrypted file: the base
// name up to its first dot, plus Extension
func ContainerName(filename string) string {
	base := SafeFilename(filename)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		base = "image"
	}
	return base + Extension
}

// SafeFilename reduces a recovered filename to a single path element so
// that a container cannot direct output outside the destination directory
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return "decrypted"
	}
	return name
}
