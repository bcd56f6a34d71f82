package domain

import "errors"

var (
	// ErrInvalidInput is returned when an identifier is empty after trimming
	ErrInvalidInput = errors.New("invalid input")

	// ErrProductNotFound is returned when the food database has no record for the code
	ErrProductNotFound = errors.New("product not found")

	// ErrRequestFailed is returned when an outbound request fails at the transport level
	ErrRequestFailed = errors.New("request failed")

	// ErrConfig is returned when an AI credential is missing or still a placeholder
	ErrConfig = errors.New("AI API key not configured")

	// ErrPermissionDenied is returned when camera access was refused
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceNotFound is returned when no camera device is available
	ErrDeviceNotFound = errors.New("camera device not found")

	// ErrUnsupportedEnvironment is returned when the client cannot provide camera access at all
	ErrUnsupportedEnvironment = errors.New("camera not supported in this environment")

	// ErrCameraUnavailable covers camera failures that fit no other class
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrDeviceBusy is returned when another capture session holds the camera
	ErrDeviceBusy = errors.New("camera in use by another session")

	// ErrCancelled is returned when the user cancels a capture session
	ErrCancelled = errors.New("capture cancelled")

	// ErrNoBarcodeDetected is returned when a finite frame source ends without an accepted code
	ErrNoBarcodeDetected = errors.New("no barcode detected")

	// ErrImageTooLarge is returned when an image exceeds the upload limit
	ErrImageTooLarge = errors.New("image too large")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// User-facing messages, one per error class.
const (
	MsgInvalidInput     = "invalid input"
	MsgNotFound         = "Product not found"
	MsgRequestFailed    = "Error fetching product information"
	MsgConfig           = "AI API key not configured"
	MsgPermissionDenied = "Camera permission denied. Allow camera access and try again."
	MsgDeviceNotFound   = "No camera was found on this device."
	MsgUnsupported      = "This browser does not support camera access."
	MsgCameraUnknown    = "Could not start the camera. Try again."
	MsgDeviceBusy       = "The camera is already in use by another scan."
	MsgCancelled        = "Scan cancelled"
	MsgNoBarcode        = "No barcode was detected in the provided frames."
	MsgImageTooLarge    = "The image is too large. Maximum 5MB."
	MsgVisionFailed     = "Error analyzing the image"
	MsgGeneric          = "Unexpected error while searching the product"
)

var userMessages = []struct {
	err error
	msg string
}{
	{ErrInvalidInput, MsgInvalidInput},
	{ErrProductNotFound, MsgNotFound},
	{ErrConfig, MsgConfig},
	{ErrPermissionDenied, MsgPermissionDenied},
	{ErrDeviceNotFound, MsgDeviceNotFound},
	{ErrUnsupportedEnvironment, MsgUnsupported},
	{ErrCameraUnavailable, MsgCameraUnknown},
	{ErrDeviceBusy, MsgDeviceBusy},
	{ErrCancelled, MsgCancelled},
	{ErrNoBarcodeDetected, MsgNoBarcode},
	{ErrImageTooLarge, MsgImageTooLarge},
	{ErrRequestFailed, MsgRequestFailed},
}

// UserMessage maps err onto the fixed message of its class.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return MsgGeneric
}
