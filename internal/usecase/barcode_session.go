package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nutriscan/backend/internal/domain"
)

// ErrSessionStarted is returned when Run is called on a session twice.
var ErrSessionStarted = errors.New("capture session already started")

// Searcher hands a decoded code to the search workflow.
type Searcher interface {
	Search(ctx context.Context, identifier string) domain.SearchState
}

// BarcodeSessionConfig holds configuration for barcode capture sessions
type BarcodeSessionConfig struct {
	MinCodeLength int
	Formats       []domain.Symbology
}

// CaptureEvent is one state transition of a capture session.
type CaptureEvent struct {
	SessionID string              `json:"sessionId"`
	State     domain.CaptureState `json:"state"`
	Code      string              `json:"code,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ScanResult is the outcome of a detected barcode.
type ScanResult struct {
	Code   string             `json:"code"`
	Search domain.SearchState `json:"search"`
}

// BarcodeSession drives Idle -> Initializing -> Scanning -> Detected | Failed,
// or Cancelled from any non-terminal state. The camera is held only while
// scanning and is released on every exit path.
type BarcodeSession struct {
	id       string
	camera   domain.Camera
	guard    *CameraGuard
	decoder  domain.FrameDecoder
	searcher Searcher
	config   BarcodeSessionConfig
	logger   *slog.Logger

	mu        sync.Mutex
	state     domain.CaptureState
	err       error
	observers []func(CaptureEvent)
	cancel    context.CancelFunc
	cancelled bool
}

// NewBarcodeSession creates an idle session.
func NewBarcodeSession(
	camera domain.Camera,
	guard *CameraGuard,
	decoder domain.FrameDecoder,
	searcher Searcher,
	config BarcodeSessionConfig,
	logger *slog.Logger,
) *BarcodeSession {
	if config.MinCodeLength <= 0 {
		config.MinCodeLength = 8
	}
	if len(config.Formats) == 0 {
		config.Formats = domain.DefaultSymbologies
	}

	id := uuid.NewString()
	return &BarcodeSession{
		id:       id,
		camera:   camera,
		guard:    guard,
		decoder:  decoder,
		searcher: searcher,
		config:   config,
		logger:   logger.With("component", "barcode-session", "session", id),
		state:    domain.CaptureIdle,
	}
}

// ID returns the session id.
func (s *BarcodeSession) ID() string { return s.id }

// Observe registers fn for every later transition. fn runs on the session's
// goroutine and must not block.
func (s *BarcodeSession) Observe(fn func(CaptureEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns the current state and, when failed, its error.
func (s *BarcodeSession) State() (domain.CaptureState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// Cancel ends the session with no result. Safe from any goroutine, before
// or during Run.
func (s *BarcodeSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Run acquires the camera, scans frames until an accepted code appears, then
// releases the camera and searches the code.
func (s *BarcodeSession) Run(ctx context.Context) (*ScanResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != domain.CaptureIdle {
		s.mu.Unlock()
		return nil, ErrSessionStarted
	}
	s.state = domain.CaptureInitializing
	s.cancel = cancel
	if s.cancelled {
		cancel()
	}
	s.mu.Unlock()

	s.transition(domain.CaptureInitializing, "", nil)

	stream, err := s.guard.Acquire(ctx, s.camera)
	if err != nil {
		return nil, s.stop(ctx, err)
	}
	defer stream.Close()

	s.transition(domain.CaptureScanning, "", nil)

	code, err := s.scan(ctx, stream)
	if err != nil {
		return nil, s.stop(ctx, err)
	}

	if err := stream.Close(); err != nil {
		s.logger.Warn("camera release failed", "error", err)
	}
	s.transition(domain.CaptureDetected, code, nil)

	return &ScanResult{Code: code, Search: s.searcher.Search(context.WithoutCancel(ctx), code)}, nil
}

func (s *BarcodeSession) scan(ctx context.Context, stream domain.VideoStream) (string, error) {
	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return "", domain.ErrCancelled
		case frame, ok := <-frames:
			if !ok {
				if err := stream.Err(); err != nil {
					return "", err
				}
				return "", domain.ErrNoBarcodeDetected
			}
			code, found := s.decoder.DecodeFrame(frame, s.config.Formats)
			if !found {
				continue
			}
			code = strings.TrimSpace(code)
			if len(code) < s.config.MinCodeLength {
				s.logger.Debug("partial read ignored", "code", code)
				continue
			}
			return code, nil
		}
	}
}

// stop moves to Cancelled or Failed and returns the error Run reports.
func (s *BarcodeSession) stop(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, domain.ErrCancelled) {
		s.transition(domain.CaptureCancelled, "", domain.ErrCancelled)
		return domain.ErrCancelled
	}
	s.logger.Info("scan failed", "error", err)
	s.transition(domain.CaptureFailed, "", err)
	return err
}

func (s *BarcodeSession) transition(state domain.CaptureState, code string, err error) {
	s.mu.Lock()
	s.state = state
	s.err = err
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	event := CaptureEvent{SessionID: s.id, State: state, Code: code}
	if err != nil {
		event.Error = domain.UserMessage(err)
	}
	for _, fn := range observers {
		fn(event)
	}
}
