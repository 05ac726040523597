package jobapi

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// extensionTypes maps audio extensions to the MIME type declared on upload
var extensionTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mpeg": "audio/mpeg",
	".mpga": "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".m4a":  "audio/x-m4a",
	".webm": "audio/webm",
	".mp4":  "audio/mp4",
}

// MediaFile is an audio file ready for upload
type MediaFile struct {
	// Name is the file name sent in the multipart form
	Name string

	// Size is the byte size used to classify the upload
	Size int64

	// MIMEType is the declared media type; may be empty
	MIMEType string

	// Open returns a fresh reader over the file contents
	Open func() (io.ReadCloser, error)
}

// Ext returns the lower-cased file extension, including the dot
func (f MediaFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// FileFromPath stats a local file and infers its MIME type from the extension
func FileFromPath(path string) (MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MediaFile{}, fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return MediaFile{}, fmt.Errorf("%s is a directory", path)
	}

	return MediaFile{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MIMEType: TypeForName(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileFromBytes wraps in-memory content as a MediaFile
func FileFromBytes(name, mimeType string, data []byte) MediaFile {
	return MediaFile{
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// TypeForName guesses a MIME type from a file name
func TypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// FormatSize formats bytes in human-readable form
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
