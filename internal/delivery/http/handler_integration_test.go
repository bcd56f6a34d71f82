package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriscan/backend/config"
	"github.com/nutriscan/backend/internal/domain"
	"github.com/nutriscan/backend/internal/logging"
	"github.com/nutriscan/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubLookup struct {
	calls atomic.Int32
}

func (s *stubLookup) Lookup(ctx context.Context, code string) (*domain.Product, error) {
	s.calls.Add(1)
	if code != "3017620422003" {
		return nil, domain.ErrProductNotFound
	}
	grade := "e"
	return &domain.Product{
		Code:        code,
		Name:        "Nutella",
		Brands:      "Ferrero",
		Quantity:    domain.PlaceholderQuantity,
		Ingredients: domain.PlaceholderIngredients,
		Nutriments:  map[string]any{},
		NutriScore:  &grade,
		Allergens:   []string{},
		Additives:   []string{},
	}, nil
}

type stubEnricher struct{}

func (stubEnricher) Enrich(ctx context.Context, p *domain.Product) (string, error) {
	return "", domain.ErrConfig
}

type stubDetector struct {
	calls atomic.Int32
	err   error
}

func (s *stubDetector) Detect(ctx context.Context, uri string) (*domain.FoodDetection, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FoodDetection{Name: "Apple", Type: "fruit", EstimatedCalories: "95"}, nil
}

// stubDecoder reads the same code from every frame
type stubDecoder struct {
	code string
}

func (s stubDecoder) DecodeFrame(frame image.Image, formats []domain.Symbology) (string, bool) {
	return s.code, s.code != ""
}

type testEnv struct {
	router   *gin.Engine
	lookup   *stubLookup
	detector *stubDetector
}

func setupTestRouter(t *testing.T, code string) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Capture: config.CaptureConfig{MaxImageBytes: 1024 * 1024, MinCodeLength: 8},
	}

	logger := logging.Discard()
	lookup := &stubLookup{}
	detector := &stubDetector{}
	search := usecase.NewSearchService(lookup, stubEnricher{}, usecase.NewIdentifierNormalizer(logger), usecase.NewStateStore(logger), logger)
	images := usecase.NewImageSession(detector, search, usecase.ImageSessionConfig{MaxImageBytes: cfg.Capture.MaxImageBytes}, logger)
	guard := usecase.NewCameraGuard()
	newSession := func(cam domain.Camera) *usecase.BarcodeSession {
		return usecase.NewBarcodeSession(cam, guard, stubDecoder{code: code}, search,
			usecase.BarcodeSessionConfig{MinCodeLength: cfg.Capture.MinCodeLength}, logger)
	}

	handler := NewHandler(search, images, newSession, HandlerConfig{
		MaxImageBytes:  cfg.Capture.MaxImageBytes,
		MaxFrames:      3,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	return &testEnv{router: SetupRouter(cfg, handler, logger), lookup: lookup, detector: detector}
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type formFile struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) domain.SearchState {
	t.Helper()
	var state domain.SearchState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func TestHealthCheckEndpoint(t *testing.T) {
	env := setupTestRouter(t, "")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "nutriscan-backend", response["service"])
	assert.NotEmpty(t, response["version"])
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("found product without analysis", func(t *testing.T) {
		env := setupTestRouter(t, "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"identifier":"3017620422003"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		state := decodeState(t, w)
		require.NotNil(t, state.Product)
		assert.Equal(t, "Nutella", state.Product.Name)
		assert.Equal(t, "Ferrero", state.Product.Brands)
		assert.Nil(t, state.Analysis)
		assert.Nil(t, state.Error)
		assert.False(t, state.Loading)
	})

	t.Run("blank identifier is invalid input", func(t *testing.T) {
		env := setupTestRouter(t, "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"identifier":"   "}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		state := decodeState(t, w)
		require.NotNil(t, state.Error)
		assert.Equal(t, "invalid input", *state.Error)
		assert.Zero(t, env.lookup.calls.Load())
	})

	t.Run("malformed json", func(t *testing.T) {
		env := setupTestRouter(t, "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"identifier":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.MsgInvalidInput)
	})

	t.Run("validates HTTP method", func(t *testing.T) {
		env := setupTestRouter(t, "")
		for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/search", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestGetProductEndpoint(t *testing.T) {
	env := setupTestRouter(t, "")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/0000000000000", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	state := decodeState(t, w)
	require.NotNil(t, state.Error)
	assert.Equal(t, domain.MsgNotFound, *state.Error)
	assert.Nil(t, state.Product)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/state", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	current := decodeState(t, w)
	assert.Equal(t, state.Sequence, current.Sequence)
}

func TestScanBarcodeEndpoint(t *testing.T) {
	t.Run("detected code is searched", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		req := multipartRequest(t, "/api/v1/scan/barcode", nil,
			formFile{"frames", "f1.png", "image/png", pngFrame(t)})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp scanResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "3017620422003", resp.Code)
		assert.Equal(t, domain.CaptureDetected, resp.State)
		require.NotNil(t, resp.Search.Product)
		assert.Equal(t, "Nutella", resp.Search.Product.Name)
	})

	t.Run("short code never reaches search", func(t *testing.T) {
		env := setupTestRouter(t, "12345")
		req := multipartRequest(t, "/api/v1/scan/barcode", nil,
			formFile{"frames", "f1.png", "image/png", pngFrame(t)},
			formFile{"frames", "f2.png", "image/png", pngFrame(t)})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, domain.MsgNoBarcode, resp.Error)
		assert.Equal(t, domain.CaptureFailed, resp.State)
		assert.Zero(t, env.lookup.calls.Load())
	})

	t.Run("browser camera error is classified", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		req := multipartRequest(t, "/api/v1/scan/barcode", map[string]string{"cameraError": "NotAllowedError"})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), domain.MsgPermissionDenied)
	})

	t.Run("missing frames", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		req := multipartRequest(t, "/api/v1/scan/barcode", map[string]string{"note": "x"})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too many frames", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		frame := formFile{"frames", "f.png", "image/png", pngFrame(t)}
		req := multipartRequest(t, "/api/v1/scan/barcode", nil, frame, frame, frame, frame)
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("undecodable frame", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		req := multipartRequest(t, "/api/v1/scan/barcode", nil,
			formFile{"frames", "f.png", "image/png", []byte("not a png")})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAnalyzeImageEndpoint(t *testing.T) {
	t.Run("detected food becomes the current product", func(t *testing.T) {
		env := setupTestRouter(t, "")
		req := multipartRequest(t, "/api/v1/scan/image", map[string]string{"source": "camera"},
			formFile{"image", "meal.png", "image/png", pngFrame(t)})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		state := decodeState(t, w)
		require.NotNil(t, state.Product)
		assert.Equal(t, "Apple", state.Product.Name)
		assert.Equal(t, "fruit", state.Product.Type)
		assert.Equal(t, 95.0, state.Product.Nutriments[domain.NutrientEnergyKcal])
		assert.Zero(t, env.lookup.calls.Load())
	})

	t.Run("oversized image rejected before analysis", func(t *testing.T) {
		env := setupTestRouter(t, "")
		req := multipartRequest(t, "/api/v1/scan/image", nil,
			formFile{"image", "huge.jpg", "image/jpeg", make([]byte, 2*1024*1024)})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.MsgImageTooLarge)
		assert.Zero(t, env.detector.calls.Load())
	})

	t.Run("missing image", func(t *testing.T) {
		env := setupTestRouter(t, "")
		req := multipartRequest(t, "/api/v1/scan/image", map[string]string{"source": "gallery"})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("vision transport failure", func(t *testing.T) {
		env := setupTestRouter(t, "")
		env.detector.err = domain.ErrRequestFailed
		req := multipartRequest(t, "/api/v1/scan/image", nil,
			formFile{"image", "meal.png", "image/png", pngFrame(t)})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), domain.MsgVisionFailed)
	})

	t.Run("missing credential", func(t *testing.T) {
		env := setupTestRouter(t, "")
		env.detector.err = domain.ErrConfig
		req := multipartRequest(t, "/api/v1/scan/image", nil,
			formFile{"image", "meal.png", "image/png", pngFrame(t)})
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), domain.MsgConfig)
	})
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestStreamStateEndpoint(t *testing.T) {
	env := setupTestRouter(t, "")
	server := httptest.NewServer(env.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/api/v1/search/stream"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial domain.SearchState
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Zero(t, initial.Sequence)

	resp, err := http.Post(server.URL+"/api/v1/search", "application/json", strings.NewReader(`{"identifier":"3017620422003"}`))
	require.NoError(t, err)
	resp.Body.Close()

	var loading, settled domain.SearchState
	require.NoError(t, conn.ReadJSON(&loading))
	require.NoError(t, conn.ReadJSON(&settled))
	assert.True(t, loading.Loading)
	assert.False(t, settled.Loading)
	require.NotNil(t, settled.Product)
	assert.Equal(t, "Nutella", settled.Product.Name)
}

func TestStreamStateEndpoint_RejectsForeignOrigin(t *testing.T) {
	env := setupTestRouter(t, "")
	server := httptest.NewServer(env.router)
	defer server.Close()

	header := http.Header{"Origin": []string{"http://evil.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/api/v1/search/stream"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func readLiveEvents(t *testing.T, conn *websocket.Conn) []liveEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var events []liveEvent
	for {
		var e liveEvent
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read live event: %v", err)
		}
		events = append(events, e)
		if e.Type != "state" {
			return events
		}
	}
}

func TestLiveScanEndpoint(t *testing.T) {
	t.Run("frame with code yields result", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		server := httptest.NewServer(env.router)
		defer server.Close()

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/api/v1/scan/barcode/live"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ready")))
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pngFrame(t)))

		events := readLiveEvents(t, conn)
		final := events[len(events)-1]
		assert.Equal(t, "result", final.Type)
		assert.Equal(t, "3017620422003", final.Code)
		require.NotNil(t, final.Search)
		assert.Equal(t, "Nutella", final.Search.Product.Name)

		var states []domain.CaptureState
		for _, e := range events[:len(events)-1] {
			states = append(states, e.Event.State)
		}
		assert.Equal(t, []domain.CaptureState{
			domain.CaptureInitializing,
			domain.CaptureScanning,
			domain.CaptureDetected,
		}, states)
	})

	t.Run("client camera failure", func(t *testing.T) {
		env := setupTestRouter(t, "3017620422003")
		server := httptest.NewServer(env.router)
		defer server.Close()

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/api/v1/scan/barcode/live"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("error:NotFoundError")))

		events := readLiveEvents(t, conn)
		final := events[len(events)-1]
		assert.Equal(t, "error", final.Type)
		assert.Equal(t, domain.MsgDeviceNotFound, final.Error)
	})

	t.Run("cancel while scanning", func(t *testing.T) {
		env := setupTestRouter(t, "")
		server := httptest.NewServer(env.router)
		defer server.Close()

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/api/v1/scan/barcode/live"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ready")))
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pngFrame(t)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("cancel")))

		events := readLiveEvents(t, conn)
		final := events[len(events)-1]
		assert.Equal(t, "error", final.Type)
		assert.Equal(t, domain.MsgCancelled, final.Error)
		assert.Zero(t, env.lookup.calls.Load())
	})
}
