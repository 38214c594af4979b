package cryptic

import (
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"time"

	"github.com/absfs/absfs"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// FileCrypter applies the input rules for image files and containers and
// moves bytes between an absfs.FileSystem and an Encrypter
type FileCrypter struct {
	enc          *Encrypter
	maxFileSize  int64
	contentTypes []string
	parallel     ParallelConfig
	log          log.FieldLogger
}

// FileResult describes one file written by the file layer
type FileResult struct {
	Source      string // Input path
	Output      string // Path written
	Filename    string // Original image filename
	ContentType string // Original image content type
	Size        int    // Bytes written
}

// NewFileCrypter creates a FileCrypter from config
func NewFileCrypter(config *Config) (*FileCrypter, error) {
	enc, err := NewEncrypter(config)
	if err != nil {
		return nil, err
	}

	return &FileCrypter{
		enc:          enc,
		maxFileSize:  config.MaxFileSize,
		contentTypes: append([]string(nil), config.ContentTypes...),
		parallel:     config.Parallel,
		log:          config.logger(),
	}, nil
}

// Encrypter returns the Encrypter the FileCrypter writes containers with
func (f *FileCrypter) Encrypter() *Encrypter {
	return f.enc
}

// EncryptFile encrypts the image at src into dstDir, naming the container
// after the image's base name
func (f *FileCrypter) EncryptFile(fs absfs.FileSystem, src, dstDir, password string) (*FileResult, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	data, err := f.readFile(fs, src, f.maxFileSize)
	if err != nil {
		return nil, err
	}

	filename := SafeFilename(src)
	contentType := DetectContentType(filename, data)
	if err := ValidateContentType(contentType, f.contentTypes); err != nil {
		return nil, err
	}

	container, err := f.enc.Encrypt(&Payload{
		Data:        data,
		Filename:    filename,
		ContentType: contentType,
		Timestamp:   time.Now(),
	}, password)
	if err != nil {
		return nil, err
	}

	dst := path.Join(dstDir, ContainerName(filename))
	if err := writeFileAtomic(fs, dst, container); err != nil {
		return nil, err
	}

	f.log.WithFields(log.Fields{
		"src":  src,
		"dst":  dst,
		"type": contentType,
		"size": humanize.IBytes(uint64(len(container))),
	}).Info("encrypted file")

	return &FileResult{
		Source:      src,
		Output:      dst,
		Filename:    filename,
		ContentType: contentType,
		Size:        len(container),
	}, nil
}

// DecryptFile decrypts the container at src and writes the recovered image
// into dstDir under its original filename. An existing file at that path is
// never replaced.
func (f *FileCrypter) DecryptFile(fs absfs.FileSystem, src, dstDir, password string) (*FileResult, error) {
	return f.decryptFile(fs, src, dstDir, password, nil)
}

func (f *FileCrypter) decryptFile(fs absfs.FileSystem, src, dstDir, password string, outputs *outputSet) (*FileResult, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}
	if err := ValidateContainerName(src); err != nil {
		return nil, err
	}

	data, err := f.readFile(fs, src, f.maxContainerSize())
	if err != nil {
		return nil, err
	}

	p, err := f.enc.Decrypt(data, password)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(p.Data)

	dst := path.Join(dstDir, SafeFilename(p.Filename))
	if err := outputs.claim(dst, src); err != nil {
		return nil, err
	}
	if _, err := fs.Stat(dst); err == nil {
		return nil, NewValidationError("output", dst, "file already exists")
	}
	if err := writeFileAtomic(fs, dst, p.Data); err != nil {
		return nil, err
	}

	f.log.WithFields(log.Fields{
		"src":  src,
		"dst":  dst,
		"type": p.ContentType,
		"size": humanize.IBytes(uint64(len(p.Data))),
	}).Info("decrypted file")

	return &FileResult{
		Source:      src,
		Output:      dst,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Size:        len(p.Data),
	}, nil
}

// RekeyFile re-encrypts the container at src in place under newPassword
func (f *FileCrypter) RekeyFile(fs absfs.FileSystem, src, oldPassword, newPassword string) (*FileResult, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}
	if err := ValidateContainerName(src); err != nil {
		return nil, err
	}

	data, err := f.readFile(fs, src, f.maxContainerSize())
	if err != nil {
		return nil, err
	}

	container, err := f.enc.Rekey(data, oldPassword, newPassword)
	if err != nil {
		return nil, err
	}

	if err := writeFileAtomic(fs, src, container); err != nil {
		return nil, err
	}

	f.log.WithFields(log.Fields{
		"src":     src,
		"version": f.enc.Version().String(),
	}).Info("rekeyed file")

	return &FileResult{
		Source: src,
		Output: src,
		Size:   len(container),
	}, nil
}

// InspectFile reads the header of the container at src
func (f *FileCrypter) InspectFile(fs absfs.FileSystem, src string) (*ContainerInfo, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}
	data, err := f.readFile(fs, src, f.maxContainerSize())
	if err != nil {
		return nil, err
	}
	return Inspect(data)
}

// maxContainerSize bounds the containers the file layer reads: the largest
// image it encrypts plus the header and the widest payload framing
func (f *FileCrypter) maxContainerSize() int64 {
	if f.maxFileSize <= 0 {
		return 0
	}
	return f.maxFileSize + int64(HeaderSize(Version2)+payloadFixedSize+2*math.MaxUint16)
}

// readFile reads src after checking it against limit bytes; 0 is unlimited
func (f *FileCrypter) readFile(fs absfs.FileSystem, src string, limit int64) ([]byte, error) {
	info, err := fs.Stat(src)
	if err != nil {
		return nil, NewIOError("stat", src, err)
	}
	if info.IsDir() {
		return nil, NewValidationError("path", src, "is a directory")
	}
	if err := ValidateFileSize(info.Size(), limit); err != nil {
		return nil, err
	}

	file, err := fs.Open(src)
	if err != nil {
		return nil, NewIOError("open", src, err)
	}
	defer file.Close()

	var r io.Reader = file
	if limit > 0 {
		r = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewIOError("read", src, err)
	}
	// The file may have grown since Stat
	if err := ValidateFileSize(int64(len(data)), limit); err != nil {
		return nil, err
	}
	return data, nil
}

// writeFileAtomic writes data to a uniquely named temporary file next to
// dst and renames it into place, so dst is either absent, unchanged, or
// complete
func writeFileAtomic(fs absfs.FileSystem, dst string, data []byte) (err error) {
	tmp := path.Join(path.Dir(dst), fmt.Sprintf(".%s.tmp", uuid.NewString()))

	file, err := fs.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return NewIOError("create", tmp, err)
	}
	defer func() {
		if err != nil {
			fs.Remove(tmp)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return NewIOError("write", tmp, err)
	}
	if err := file.Close(); err != nil {
		return NewIOError("close", tmp, err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		return NewIOError("rename", dst, err)
	}
	return nil
}
