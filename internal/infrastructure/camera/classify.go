// Package camera adapts browser-side cameras to domain.Camera. Frames arrive
// as encoded images, either uploaded in one request or streamed over a
// websocket.
package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nutriscan/backend/internal/domain"
)

// Classify maps the name of a getUserMedia failure reported by the browser
// onto a camera error class.
func Classify(name string) error {
	name = strings.TrimSpace(name)
	switch name {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, name)
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		return fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, name)
	case "NotSupportedError", "TypeError":
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedEnvironment, name)
	default:
		if name == "" {
			name = "unknown"
		}
		return fmt.Errorf("%w: %s", domain.ErrCameraUnavailable, name)
	}
}

// DecodeFrame decodes one encoded frame (JPEG, PNG or GIF).
func DecodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable frame: %v", domain.ErrInvalidInput, err)
	}
	return img, nil
}
