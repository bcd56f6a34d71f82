package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nutriscan/backend/internal/domain"
	"github.com/nutriscan/backend/internal/infrastructure/camera"
	"github.com/nutriscan/backend/internal/usecase"
)

// SearchUsecase is the search workflow as seen by the handlers
type SearchUsecase interface {
	Search(ctx context.Context, identifier string) domain.SearchState
	State() domain.SearchState
	Subscribe() (<-chan domain.SearchState, func())
}

// ImageAnalyzer runs image capture sessions
type ImageAnalyzer interface {
	Analyze(ctx context.Context, input domain.ImageInput) (domain.SearchState, error)
}

const pingInterval = 25 * time.Second

// SessionFactory builds a barcode capture session over a camera
type SessionFactory func(cam domain.Camera) *usecase.BarcodeSession

// HandlerConfig holds upload limits
type HandlerConfig struct {
	MaxImageBytes  int64
	MaxFrames      int
	AllowedOrigins []string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search     SearchUsecase
	images     ImageAnalyzer
	newSession SessionFactory
	config     HandlerConfig
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(search SearchUsecase, images ImageAnalyzer, newSession SessionFactory, config HandlerConfig, logger *slog.Logger) *Handler {
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 5 * 1024 * 1024
	}
	if config.MaxFrames <= 0 {
		config.MaxFrames = 10
	}

	h := &Handler{
		search:     search,
		images:     images,
		newSession: newSession,
		config:     config,
		logger:     logger.With("component", "handler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || isAllowedOrigin(origin, config.AllowedOrigins)
		},
	}
	return h
}

type searchRequest struct {
	Identifier string `json:"identifier"`
}

type errorResponse struct {
	Error string              `json:"error"`
	State domain.CaptureState `json:"state,omitempty"`
}

type scanResponse struct {
	Code   string              `json:"code"`
	State  domain.CaptureState `json:"state"`
	Search domain.SearchState  `json:"search"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "nutriscan-backend",
		"version": "1.0.0",
	})
}

// Search handles POST /api/v1/search
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: domain.MsgInvalidInput})
		return
	}

	state := h.search.Search(c.Request.Context(), req.Identifier)
	c.JSON(statusForState(state), state)
}

// GetProduct handles GET /api/v1/products/:code
func (h *Handler) GetProduct(c *gin.Context) {
	state := h.search.Search(c.Request.Context(), c.Param("code"))
	c.JSON(statusForState(state), state)
}

// GetState handles GET /api/v1/search/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.search.State())
}

// StreamState handles GET /api/v1/search/stream. Each state change is sent
// as one JSON text message.
func (h *Handler) StreamState(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	states, unsubscribe := h.search.Subscribe()
	defer unsubscribe()

	// The read loop only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case state, ok := <-states:
			if !ok {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}

// ScanBarcode handles POST /api/v1/scan/barcode. The form carries captured
// frames as "frames" files, or a "cameraError" field naming the browser's
// getUserMedia failure.
func (h *Handler) ScanBarcode(c *gin.Context) {
	var cam domain.Camera
	if reason := c.PostForm("cameraError"); reason != "" {
		cam = camera.FailedStill(reason)
	} else {
		uploads, err := h.readFrames(c)
		if err != nil {
			h.fail(c, err, "")
			return
		}
		still, err := camera.StillFromUploads(uploads)
		if err != nil {
			h.fail(c, err, "")
			return
		}
		cam = still
	}

	session := h.newSession(cam)
	result, err := session.Run(c.Request.Context())
	if err != nil {
		state, _ := session.State()
		h.fail(c, err, state)
		return
	}

	state, _ := session.State()
	c.JSON(http.StatusOK, scanResponse{Code: result.Code, State: state, Search: result.Search})
}

func (h *Handler) readFrames(c *gin.Context) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	files := form.File["frames"]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no frames", domain.ErrInvalidInput)
	}
	if len(files) > h.config.MaxFrames {
		return nil, fmt.Errorf("%w: at most %d frames", domain.ErrInvalidInput, h.config.MaxFrames)
	}

	uploads := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := h.readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, data)
	}
	return uploads, nil
}

func (h *Handler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.config.MaxImageBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrImageTooLarge, fh.Filename, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.config.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if int64(len(data)) > h.config.MaxImageBytes {
		return nil, domain.ErrImageTooLarge
	}
	return data, nil
}

// liveEvent is one message sent to a live scan client
type liveEvent struct {
	Type   string                `json:"type"` // "state", "result" or "error"
	Event  *usecase.CaptureEvent `json:"event,omitempty"`
	Code   string                `json:"code,omitempty"`
	Error  string                `json:"error,omitempty"`
	Search *domain.SearchState   `json:"search,omitempty"`
}

// LiveScan handles GET /api/v1/scan/barcode/live. The client streams frames
// as binary messages and control words as text; the server answers with
// session transitions and a final result or error.
func (h *Handler) LiveScan(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.config.MaxImageBytes)

	sock := camera.NewSocket(conn, h.logger)
	session := h.newSession(sock)
	sock.OnCancel(session.Cancel)
	session.Observe(func(e usecase.CaptureEvent) {
		if err := conn.WriteJSON(liveEvent{Type: "state", Event: &e}); err != nil {
			h.logger.Debug("event not delivered", "session", e.SessionID, "error", err)
		}
	})

	result, err := session.Run(c.Request.Context())
	final := liveEvent{Type: "result"}
	if err != nil {
		final = liveEvent{Type: "error", Error: domain.UserMessage(err)}
	} else {
		final.Code = result.Code
		final.Search = &result.Search
	}
	if err := conn.WriteJSON(final); err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// AnalyzeImage handles POST /api/v1/scan/image with an "image" file and an
// optional "source" field (camera or gallery).
func (h *Handler) AnalyzeImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		h.fail(c, fmt.Errorf("%w: missing image", domain.ErrInvalidInput), "")
		return
	}
	data, err := h.readUpload(fh)
	if err != nil {
		h.fail(c, err, "")
		return
	}

	state, err := h.images.Analyze(c.Request.Context(), domain.ImageInput{
		Data:     data,
		MIMEType: fh.Header.Get("Content-Type"),
		Source:   domain.ImageSource(c.PostForm("source")),
	})
	if err != nil {
		if errors.Is(err, domain.ErrRequestFailed) {
			c.JSON(http.StatusBadGateway, errorResponse{Error: domain.MsgVisionFailed})
			return
		}
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) fail(c *gin.Context, err error, state domain.CaptureState) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, errorResponse{Error: domain.UserMessage(err), State: state})
}

// statusForError maps an error class onto an HTTP status
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDeviceBusy), errors.Is(err, domain.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrDeviceNotFound),
		errors.Is(err, domain.ErrUnsupportedEnvironment),
		errors.Is(err, domain.ErrCameraUnavailable),
		errors.Is(err, domain.ErrNoBarcodeDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRequestFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusForState maps a settled search onto an HTTP status
func statusForState(state domain.SearchState) int {
	if state.Error == nil {
		return http.StatusOK
	}
	switch *state.Error {
	case domain.MsgInvalidInput:
		return http.StatusBadRequest
	case domain.MsgNotFound:
		return http.StatusNotFound
	case domain.MsgRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
