package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// ErrDecode marks narration payloads that are neither a decodable
	// container nor valid raw PCM.
	ErrDecode = errors.New("decode failed")
	// ErrSynthesis marks a content collaborator that returned no usable payload.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrAssetUnavailable marks an image or video that failed to load within
	// the preload deadline.
	ErrAssetUnavailable = errors.New("asset unavailable")
	// ErrCapture marks recorder failures after capture started.
	ErrCapture = errors.New("capture failed")
)

var markers = []error{
	ErrDecode,
	ErrSynthesis,
	ErrAssetUnavailable,
	ErrCapture,
	ErrExternalTool,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrTimeout,
	ErrTransient,
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the text of the first marker err carries, or "failed" when it
// carries none.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker.Error()
		}
	}
	return "failed"
}

// StatusMessage renders the single terminal message shown for a failed run.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	kind := Kind(err)
	msg := strings.TrimSpace(err.Error())
	if strings.HasPrefix(msg, kind) {
		return msg
	}
	return kind + ": " + msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
