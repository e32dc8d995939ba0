package stage

import (
	"errors"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"reelsmith/internal/services"
)

// ReadInput loads a user-supplied file. Missing or unreadable inputs are
// validation errors, so the run fails before any collaborator is called.
func ReadInput(stageName, label, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "read "+label, "no path given", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		marker := services.ErrValidation
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, stageName, "read "+label, filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "read "+label, filepath.Base(path)+" is empty", nil)
	}
	return data, nil
}

// MimeType guesses a media type from the file extension, falling back to
// application/octet-stream.
func MimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	}
	if value := mime.TypeByExtension(ext); value != "" {
		if base, _, ok := strings.Cut(value, ";"); ok {
			return base
		}
		return value
	}
	return "application/octet-stream"
}
