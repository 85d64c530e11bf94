package console

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oicur0t/ratelog/pkg/models"
	"github.com/oicur0t/ratelog/pkg/retry"
)

var (
	// ErrCircuitOpen is returned while the breaker blocks requests
	ErrCircuitOpen = errors.New("circuit breaker is open, server may be down")
	// ErrUnknownCommand is returned when the daemon does not know the command
	ErrUnknownCommand = errors.New("unknown command")
	// ErrRejected is returned for any other 4xx answer
	ErrRejected = errors.New("request rejected")
)

const (
	commandEndpoint = "/v1/commands"
	healthEndpoint  = "/v1/health"
)

// CircuitBreaker prevents overwhelming a failing server
type CircuitBreaker struct {
	failures    int
	lastFailure time.Time
	threshold   int
	timeout     time.Duration
	now         func() time.Time
	mu          sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

// isOpen checks if the circuit breaker is open (blocking requests)
func (cb *CircuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	since := cb.now().Sub(cb.lastFailure)
	if cb.failures >= cb.threshold && since < cb.timeout {
		return true
	}

	if since >= cb.timeout {
		cb.failures = 0
	}

	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.now()
}

// Client sends command lines to a ratelog daemon
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *zap.Logger
	retryConfig    retry.Config
	circuitBreaker *CircuitBreaker
}

// NewClient creates a new HTTP client. tlsConfig may be nil for plain HTTP.
func NewClient(baseURL string, tlsConfig *tls.Config, timeout time.Duration, maxRetries int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxRetries = maxRetries

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
	}
}

// Run sends a raw command line
func (c *Client) Run(ctx context.Context, line string) (*models.CommandResponse, error) {
	return c.send(ctx, models.CommandRequest{Line: line})
}

// RunTokens sends pre-split tokens
func (c *Client) RunTokens(ctx context.Context, tokens []string) (*models.CommandResponse, error) {
	return c.send(ctx, models.CommandRequest{Tokens: tokens})
}

func (c *Client) send(ctx context.Context, req models.CommandRequest) (*models.CommandResponse, error) {
	if c.circuitBreaker.isOpen() {
		return nil, ErrCircuitOpen
	}

	var resp *models.CommandResponse
	err := retry.Do(ctx, c.retryConfig, func() error {
		var err error
		resp, err = c.sendRequest(ctx, req)
		if errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrRejected) {
			return retry.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		c.circuitBreaker.recordSuccess()
		return resp, nil
	case errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrRejected):
		// The server answered, so it is up.
		c.circuitBreaker.recordSuccess()
		return resp, err
	default:
		c.circuitBreaker.recordFailure()
		return nil, err
	}
}

// sendRequest makes a single HTTP request
func (c *Client) sendRequest(ctx context.Context, cmd models.CommandRequest) (*models.CommandResponse, error) {
	jsonData, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandEndpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed", zap.Error(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)
	}

	var out models.CommandResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("invalid response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &out, fmt.Errorf("%w: %s", ErrUnknownCommand, out.Command)
	case resp.StatusCode >= 400:
		return &out, fmt.Errorf("%w: %s", ErrRejected, out.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.logger.Debug("Command sent",
		zap.String("command", out.Command),
		zap.Bool("ok", out.OK),
		zap.Int("lines", len(out.Lines)))

	return &out, nil
}

// Health fetches the daemon's health report
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}

	return &out, nil
}
