package camera

import (
	"context"
	"fmt"
	"image"

	"github.com/nutriscan/backend/internal/domain"
)

// Still is a camera whose frames were captured client-side and uploaded
// together. Its stream ends after the last frame.
type Still struct {
	frames []image.Image
	err    error
}

var _ domain.Camera = (*Still)(nil)

// NewStill serves already decoded frames.
func NewStill(frames []image.Image) *Still {
	return &Still{frames: frames}
}

// StillFromUploads decodes every upload. Any undecodable upload is an
// invalid input.
func StillFromUploads(uploads [][]byte) (*Still, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no frames uploaded", domain.ErrInvalidInput)
	}
	frames := make([]image.Image, 0, len(uploads))
	for i, data := range uploads {
		img, err := DecodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, img)
	}
	return NewStill(frames), nil
}

// FailedStill reports a camera failure the browser hit before capturing.
func FailedStill(reason string) *Still {
	return &Still{err: Classify(reason)}
}

// Acquire returns a stream over the stored frames.
func (s *Still) Acquire(ctx context.Context) (domain.VideoStream, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan image.Image, len(s.frames))
	for _, f := range s.frames {
		ch <- f
	}
	close(ch)
	return &stillStream{frames: ch}, nil
}

type stillStream struct {
	frames chan image.Image
}

func (s *stillStream) Frames() <-chan image.Image { return s.frames }

func (s *stillStream) Err() error { return nil }

func (s *stillStream) Close() error { return nil }
