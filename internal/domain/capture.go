package domain

import (
	"context"
	"image"
)

// CaptureState is a barcode capture session state.
type CaptureState string

const (
	CaptureIdle         CaptureState = "idle"
	CaptureInitializing CaptureState = "initializing"
	CaptureScanning     CaptureState = "scanning"
	CaptureDetected     CaptureState = "detected"
	CaptureFailed       CaptureState = "failed"
	CaptureCancelled    CaptureState = "cancelled"
)

// Terminal reports whether no further transitions can follow s.
func (s CaptureState) Terminal() bool {
	return s == CaptureDetected || s == CaptureFailed || s == CaptureCancelled
}

// Symbology is a barcode format the decoder should recognize.
type Symbology string

const (
	SymbologyEAN13   Symbology = "ean_13"
	SymbologyEAN8    Symbology = "ean_8"
	SymbologyCode128 Symbology = "code_128"
	SymbologyCode39  Symbology = "code_39"
	SymbologyUPCA    Symbology = "upc_a"
	SymbologyUPCE    Symbology = "upc_e"
)

// DefaultSymbologies are the formats packaged food is labeled with.
var DefaultSymbologies = []Symbology{
	SymbologyEAN13,
	SymbologyEAN8,
	SymbologyCode128,
	SymbologyCode39,
	SymbologyUPCA,
	SymbologyUPCE,
}

// ImageSource tells where a still image came from.
type ImageSource string

const (
	ImageSourceCamera  ImageSource = "camera"
	ImageSourceGallery ImageSource = "gallery"
)

// ImageInput is one still image handed to an image capture session.
type ImageInput struct {
	Data     []byte
	MIMEType string
	Source   ImageSource
}

// VideoStream is an acquired camera. Close releases the device. Err reports
// why Frames closed when the source failed rather than ran out; it is nil
// while frames are still flowing.
type VideoStream interface {
	Frames() <-chan image.Image
	Err() error
	Close() error
}

// Camera acquires exclusive access to a frame source.
type Camera interface {
	Acquire(ctx context.Context) (VideoStream, error)
}

// FrameDecoder finds a barcode in one frame. ok is false when the frame
// holds no readable code of the requested formats.
type FrameDecoder interface {
	DecodeFrame(frame image.Image, formats []Symbology) (code string, ok bool)
}
