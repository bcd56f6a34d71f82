package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nutriscan/backend/internal/domain"
	"golang.org/x/time/rate"
)

// ClientConfig configures the Open Food Facts client
type ClientConfig struct {
	BaseURL           string
	Locale            string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client handles communication with the Open Food Facts product API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	locale      string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

var _ domain.ProductLookup = (*Client)(nil)

// NewClient creates a new Open Food Facts client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	// Open Food Facts asks for at most 100 product reads per minute
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		locale:      cfg.Locale,
		timeout:     cfg.Timeout,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:      logger.With("component", "openfoodfacts"),
	}
}

// Lookup fetches one product by barcode and normalizes it. There is exactly
// one outbound attempt per call.
func (c *Client) Lookup(ctx context.Context, code string) (*domain.Product, error) {
	resp, err := c.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	return MapToProduct(code, resp.Product, c.locale), nil
}

// GetProduct fetches the raw product record for a barcode.
func (c *Client) GetProduct(ctx context.Context, code string) (*domain.OFFProductResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrRequestFailed, err)
	}

	reqURL := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(code))
	c.logger.Debug("product lookup", "code", code)

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		c.logger.Warn("product lookup request failed", "code", code, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("product lookup failed", "code", code, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrRequestFailed, resp.StatusCode)
	}

	var result domain.OFFProductResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRequestFailed, err)
	}

	if result.Status != domain.OFFStatusFound || result.Product == nil {
		c.logger.Info("product not found", "code", code, "status_verbose", result.StatusVerbose)
		return nil, domain.ErrProductNotFound
	}

	return &result, nil
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrRequestFailed, err)
	}
	req.Header.Set("User-Agent", "NutriScan/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRequestFailed, err)
	}

	return resp, nil
}
