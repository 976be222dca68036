package request

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rivencompanion/trc/internal/logger"
)

type ClientOption func(*Client)

// Client is an HTTP client with retry/backoff built in, shared by the
// library and debrid adapters.
type Client struct {
	client          *http.Client
	headers         map[string]string
	headersMu       sync.RWMutex
	maxRetries      int
	timeout         time.Duration
	skipTLSVerify   bool
	retryableStatus map[int]struct{}
	logger          zerolog.Logger
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithHeaders sets default headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.headersMu.Lock()
		c.headers = headers
		c.headersMu.Unlock()
	}
}

// WithRetryableStatus sets the status codes that trigger a retry.
func WithRetryableStatus(statusCodes ...int) ClientOption {
	return func(c *Client) {
		c.retryableStatus = make(map[int]struct{})
		for _, code := range statusCodes {
			c.retryableStatus[code] = struct{}{}
		}
	}
}

// Do performs an HTTP request, retrying on configured status codes and on
// transient network errors with exponential backoff and jitter.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	var err error

	if req.Body != nil {
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body.Close()
	}

	backoff := 500 * time.Millisecond
	var resp *http.Response

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		c.headersMu.RLock()
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}
		c.headersMu.RUnlock()

		resp, err = c.client.Do(req)
		if err != nil {
			if isRetryableError(err) && attempt < c.maxRetries {
				if !sleepWithJitter(req.Context(), &backoff) {
					return nil, req.Context().Err()
				}
				continue
			}
			return nil, err
		}

		if _, ok := c.retryableStatus[resp.StatusCode]; !ok || attempt == c.maxRetries {
			return resp, nil
		}

		resp.Body.Close()
		if !sleepWithJitter(req.Context(), &backoff) {
			return nil, req.Context().Err()
		}
	}

	return nil, fmt.Errorf("max retries exceeded")
}

func sleepWithJitter(ctx context.Context, backoff *time.Duration) bool {
	jitter := time.Duration(rand.Int63n(int64(*backoff / 4)))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(*backoff + jitter):
		*backoff *= 2
		return true
	}
}

// New creates a Client with sane retry defaults, overridden by options.
func New(options ...ClientOption) *Client {
	client := &Client{
		maxRetries:    3,
		skipTLSVerify: false,
		retryableStatus: map[int]struct{}{
			http.StatusTooManyRequests:     {},
			http.StatusInternalServerError: {},
			http.StatusBadGateway:          {},
			http.StatusServiceUnavailable:  {},
			http.StatusGatewayTimeout:      {},
		},
		logger:  logger.New("request"),
		timeout: 60 * time.Second,
		headers: make(map[string]string),
	}

	for _, option := range options {
		option(client)
	}

	client.client = &http.Client{
		Timeout: client.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: client.skipTLSVerify,
			},
			Proxy: http.ProxyFromEnvironment,
		},
	}

	return client
}

func isRetryableError(err error) bool {
	errString := err.Error()

	if strings.Contains(errString, "connection reset by peer") ||
		strings.Contains(errString, "read: connection reset") ||
		strings.Contains(errString, "connection refused") ||
		strings.Contains(errString, "network is unreachable") ||
		strings.Contains(errString, "connection timed out") ||
		strings.Contains(errString, "no such host") ||
		strings.Contains(errString, "i/o timeout") ||
		strings.Contains(errString, "unexpected EOF") ||
		strings.Contains(errString, "TLS handshake timeout") {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
