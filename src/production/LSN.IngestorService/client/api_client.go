package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned without contacting the API while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements circuit breaker pattern for resilience
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitBreakerState
	failureCount int
	lastFailTime time.Time
	mutex        sync.RWMutex
}

// StatusError is a non-2xx answer from the API Service
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Message)
}

// Permanent reports whether resending the same reading cannot succeed.
// 429 is worth retrying; other 4xx answers are about the reading itself.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// IsPermanent reports whether err is a StatusError that retrying cannot fix
func IsPermanent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Permanent()
}

// APIClient handles communication with the API Service
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	apiKey         string
	circuitBreaker *CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
}

// Option configures an APIClient
type Option func(*APIClient)

// WithRetry overrides the retry count and the first backoff delay
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *APIClient) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithCircuitBreaker overrides the failure threshold and the open period
func WithCircuitBreaker(maxFailures int, resetTimeout time.Duration) Option {
	return func(c *APIClient) {
		c.circuitBreaker.maxFailures = maxFailures
		c.circuitBreaker.resetTimeout = resetTimeout
	}
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, apiKey string, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey: apiKey,
		circuitBreaker: &CircuitBreaker{
			maxFailures:  5,
			resetTimeout: 30 * time.Second,
			state:        StateClosed,
		},
		maxRetries: 3,
		retryDelay: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IngestAck is the API Service's acknowledgement of one stored reading
type IngestAck struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	ID              int64  `json:"id"`
	NodeID          string `json:"node_id"`
	Timestamp       string `json:"timestamp"`
	StoredTimestamp string `json:"stored_timestamp"`
	Error           string `json:"error,omitempty"`
}

// Circuit breaker methods
func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	cb.state = StateClosed
}

func (cb *CircuitBreaker) onFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// retryWithBackoff executes a function with exponential backoff retry logic.
// Permanent failures return at once and count as a healthy round trip.
func (c *APIClient) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if !c.circuitBreaker.canExecute() {
			return ErrCircuitOpen
		}

		err := operation()
		if err == nil {
			c.circuitBreaker.onSuccess()
			return nil
		}
		if IsPermanent(err) {
			c.circuitBreaker.onSuccess()
			return err
		}

		lastErr = err
		c.circuitBreaker.onFailure()

		// Don't retry on last attempt
		if attempt == c.maxRetries {
			break
		}

		delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// PostReading forwards one gateway reading to POST /api/sensor-data
func (c *APIClient) PostReading(ctx context.Context, payload map[string]interface{}) (*IngestAck, error) {
	var ack IngestAck

	err := c.retryWithBackoff(ctx, func() error {
		resp, err := c.makeRequest(ctx, http.MethodPost, "/api/sensor-data", payload)
		if err != nil {
			return fmt.Errorf("failed to post reading: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			var errResp struct {
				Error string `json:"error"`
			}
			msg := strings.TrimSpace(string(body))
			if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
				msg = errResp.Error
			}
			return &StatusError{Code: resp.StatusCode, Message: msg}
		}

		if err := json.Unmarshal(body, &ack); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "lsn-ingestor-service")

	return c.httpClient.Do(req)
}

// Health checks if the API Service is healthy
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health/live", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	c.circuitBreaker.mutex.RLock()
	defer c.circuitBreaker.mutex.RUnlock()

	return map[string]interface{}{
		"state":          c.circuitBreaker.state.String(),
		"failure_count":  c.circuitBreaker.failureCount,
		"last_fail_time": c.circuitBreaker.lastFailTime,
		"max_failures":   c.circuitBreaker.maxFailures,
		"reset_timeout":  c.circuitBreaker.resetTimeout.String(),
	}
}
