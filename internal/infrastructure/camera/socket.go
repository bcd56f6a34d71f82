package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nutriscan/backend/internal/domain"
)

// Text control messages a live scan client may send.
const (
	ControlReady       = "ready"
	ControlCancel      = "cancel"
	ControlErrorPrefix = "error:"

	frameBacklog = 4
)

// FrameReader is the read half of a websocket connection.
type FrameReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

var _ FrameReader = (*websocket.Conn)(nil)

// Socket is a camera fed by a browser over a websocket. Binary messages are
// encoded frames; text messages are "ready", "cancel" or "error:<Name>"
// where Name is the getUserMedia failure. Socket owns the read side of the
// connection; the caller keeps the write side and closes the connection.
type Socket struct {
	conn   FrameReader
	logger *slog.Logger

	mu       sync.Mutex
	acquired bool
	closed   bool
	endErr   error
	onCancel func()
	frames   chan image.Image
	ready    chan error
	signal   sync.Once
}

var _ domain.Camera = (*Socket)(nil)

// NewSocket wraps the read side of conn.
func NewSocket(conn FrameReader, logger *slog.Logger) *Socket {
	return &Socket{
		conn:   conn,
		logger: logger.With("component", "camera-socket"),
		frames: make(chan image.Image, frameBacklog),
		ready:  make(chan error, 1),
	}
}

// OnCancel registers fn to run when the client sends "cancel" mid-scan.
func (s *Socket) OnCancel(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCancel = fn
}

// Acquire starts reading and waits for the client to report that its camera
// is running, or why it is not.
func (s *Socket) Acquire(ctx context.Context) (domain.VideoStream, error) {
	s.mu.Lock()
	if s.acquired {
		s.mu.Unlock()
		return nil, domain.ErrDeviceBusy
	}
	s.acquired = true
	s.mu.Unlock()

	go s.readLoop()

	select {
	case err := <-s.ready:
		if err != nil {
			return nil, err
		}
		return &socketStream{s}, nil
	case <-ctx.Done():
		s.finish(nil)
		return nil, ctx.Err()
	}
}

func (s *Socket) readLoop() {
	var endErr error
	defer func() {
		s.report(fmt.Errorf("%w: connection closed", domain.ErrCameraUnavailable))
		s.finish(endErr)
	}()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				s.logger.Debug("read ended", "error", err)
			}
			endErr = fmt.Errorf("%w: connection lost: %v", domain.ErrCameraUnavailable, err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			img, err := DecodeFrame(data)
			if err != nil {
				s.logger.Debug("frame dropped", "error", err)
				continue
			}
			s.report(nil)
			s.push(img)
		case websocket.TextMessage:
			if endErr = s.control(strings.TrimSpace(string(data))); endErr != nil {
				return
			}
		}
	}
}

// control handles one text message. A non-nil error ends reading.
func (s *Socket) control(msg string) error {
	switch {
	case msg == ControlReady:
		s.report(nil)
		return nil
	case msg == ControlCancel:
		s.report(domain.ErrCancelled)
		s.mu.Lock()
		fn := s.onCancel
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
		return domain.ErrCancelled
	case strings.HasPrefix(msg, ControlErrorPrefix):
		err := Classify(strings.TrimPrefix(msg, ControlErrorPrefix))
		s.logger.Info("client camera failure", "error", err)
		s.report(err)
		return err
	default:
		s.logger.Debug("unknown control message", "message", msg)
		return nil
	}
}

// report settles Acquire exactly once.
func (s *Socket) report(err error) {
	s.signal.Do(func() { s.ready <- err })
}

// push hands a frame to the scanner, dropping it when the scanner lags.
func (s *Socket) push(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- img:
	default:
	}
}

// finish closes the frame channel once, recording err as the reason unless
// the stream was already released.
func (s *Socket) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.endErr = err
	close(s.frames)
}

type socketStream struct {
	s *Socket
}

func (st *socketStream) Frames() <-chan image.Image { return st.s.frames }

func (st *socketStream) Err() error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.s.endErr
}

func (st *socketStream) Close() error {
	st.s.finish(nil)
	return nil
}
