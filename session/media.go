package session

import (
	"mime"
	"strings"

	"audiobrief/jobapi"
)

var acceptedTypes = map[string]bool{
	"audio/mp3":   true,
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/ogg":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
	"audio/webm":  true,
	"audio/mp4":   true,
}

var acceptedExtensions = map[string]bool{
	".mp3":  true,
	".mpeg": true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".webm": true,
	".mp4":  true,
}

// SupportedFormats is the user-facing list of accepted formats
const SupportedFormats = "MP3, WAV, OGG, M4A, WEBM or MP4"

// AcceptedExtension reports whether a file name has an accepted audio extension
func AcceptedExtension(name string) bool {
	return acceptedExtensions[jobapi.MediaFile{Name: name}.Ext()]
}

// AcceptedFile reports whether the declared type or the extension is accepted
func AcceptedFile(f jobapi.MediaFile) bool {
	if f.MIMEType != "" {
		mediaType, _, err := mime.ParseMediaType(f.MIMEType)
		if err == nil && acceptedTypes[strings.ToLower(mediaType)] {
			return true
		}
	}
	return acceptedExtensions[f.Ext()]
}
