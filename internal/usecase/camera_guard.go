package usecase

import (
	"context"
	"sync"

	"github.com/nutriscan/backend/internal/domain"
)

// CameraGuard admits one capture session to a camera at a time. The hold is
// released when the returned stream is closed.
type CameraGuard struct {
	mu sync.Mutex
}

// NewCameraGuard creates a guard with the camera free.
func NewCameraGuard() *CameraGuard {
	return &CameraGuard{}
}

// Acquire takes the guard and then the camera. It fails fast with
// ErrDeviceBusy instead of queueing behind another session.
func (g *CameraGuard) Acquire(ctx context.Context, camera domain.Camera) (domain.VideoStream, error) {
	if !g.mu.TryLock() {
		return nil, domain.ErrDeviceBusy
	}

	stream, err := camera.Acquire(ctx)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	return &guardedStream{VideoStream: stream, release: g.mu.Unlock}, nil
}

type guardedStream struct {
	domain.VideoStream
	release func()
	once    sync.Once
	err     error
}

// Close releases the camera and then the guard, once.
func (s *guardedStream) Close() error {
	s.once.Do(func() {
		s.err = s.VideoStream.Close()
		s.release()
	})
	return s.err
}
