// Package barcode decodes 1D product barcodes from camera frames.
package barcode

import (
	"image"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/nutriscan/backend/internal/domain"
)

// Decoder implements domain.FrameDecoder with the ZXing one-dimensional readers.
type Decoder struct {
	logger *slog.Logger
}

var _ domain.FrameDecoder = (*Decoder)(nil)

// NewDecoder creates a frame decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger.With("component", "barcode")}
}

// readerFor returns a fresh reader for one symbology. Readers keep state
// between calls so one is built per decode.
func readerFor(s domain.Symbology) gozxing.Reader {
	switch s {
	case domain.SymbologyEAN13:
		return oned.NewEAN13Reader()
	case domain.SymbologyEAN8:
		return oned.NewEAN8Reader()
	case domain.SymbologyUPCA:
		return oned.NewUPCAReader()
	case domain.SymbologyUPCE:
		return oned.NewUPCEReader()
	case domain.SymbologyCode128:
		return oned.NewCode128Reader()
	case domain.SymbologyCode39:
		return oned.NewCode39Reader()
	default:
		return nil
	}
}

// DecodeFrame tries each requested format in order and returns the first hit.
func (d *Decoder) DecodeFrame(frame image.Image, formats []domain.Symbology) (string, bool) {
	if frame == nil {
		return "", false
	}
	if len(formats) == 0 {
		formats = domain.DefaultSymbologies
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		d.logger.Debug("frame rejected", "error", err)
		return "", false
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	for _, format := range formats {
		reader := readerFor(format)
		if reader == nil {
			d.logger.Warn("unsupported symbology", "format", format)
			continue
		}
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			continue
		}
		text := result.GetText()
		if text == "" {
			continue
		}
		d.logger.Debug("barcode decoded", "format", format, "code", text)
		return text, true
	}

	return "", false
}
