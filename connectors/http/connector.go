// Copyright 2025 Smarter
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http implements the API connection that api-class plugins execute
// their rendered requests through. It hardens outbound traffic with SSRF
// protection, response size limits, and bounded retries.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"smarter/platform/connectors/base"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseSize is the maximum response body size (10MB).
	DefaultMaxResponseSize = 10 * 1024 * 1024
	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the initial delay between retries.
	DefaultRetryDelay = 100 * time.Millisecond
	// MaxRetryDelay is the maximum delay between retries.
	MaxRetryDelay = 5 * time.Second
)

// Connection implements base.APIConnection over net/http.
type Connection struct {
	config          *base.Config
	httpClient      *http.Client
	logger          *log.Logger
	baseURL         string
	authType        string
	authConfig      map[string]string
	headers         map[string]string
	maxResponseSize int64
	maxRetries      int
	retryDelay      time.Duration
	allowPrivateIPs bool
}

// New creates an unconnected HTTP connection with secure defaults.
func New() *Connection {
	return &Connection{
		logger:          log.New(os.Stdout, "[HTTP] ", log.LstdFlags),
		headers:         make(map[string]string),
		maxResponseSize: DefaultMaxResponseSize,
		maxRetries:      DefaultMaxRetries,
		retryDelay:      DefaultRetryDelay,
		allowPrivateIPs: false,
	}
}

// SetHTTPClient substitutes the underlying client. Used by tests.
func (c *Connection) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Connect validates the base URL and builds the hardened HTTP client.
func (c *Connection) Connect(ctx context.Context, config *base.Config) error {
	c.config = config

	baseURLStr := config.ConnectionURL
	if baseURLStr == "" {
		return base.NewConnectorError(config.Name, "Connect", "connection URL is required", nil)
	}

	parsedURL, err := url.Parse(baseURLStr)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "invalid base URL format", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return base.NewConnectorError(config.Name, "Connect", "base URL must use http or https scheme", nil)
	}

	if allowPrivate, ok := config.Options["allow_private_ips"].(bool); ok {
		c.allowPrivateIPs = allowPrivate
	}

	opts := base.DefaultURLValidationOptions()
	opts.AllowPrivateIPs = c.allowPrivateIPs
	if err := base.ValidateURL(baseURLStr, opts); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "SSRF protection", err)
	}

	c.baseURL = strings.TrimSuffix(baseURLStr, "/")

	if authType, ok := config.Options["auth_type"].(string); ok {
		c.authType = authType
	} else {
		c.authType = "none"
	}

	c.authConfig = make(map[string]string)
	for key, val := range config.Credentials {
		c.authConfig[key] = val
	}

	if headers, ok := config.Options["headers"].(map[string]interface{}); ok {
		for key, val := range headers {
			if strVal, ok := val.(string); ok {
				c.headers[key] = strVal
			}
		}
	}

	timeout := DefaultTimeout
	if config.Timeout > 0 {
		timeout = config.Timeout
	}

	if maxSize, ok := config.Options["max_response_size"].(float64); ok && maxSize > 0 {
		c.maxResponseSize = int64(maxSize)
	}
	if retries, ok := config.Options["max_retries"].(float64); ok {
		c.maxRetries = int(retries)
	}
	if delay, ok := config.Options["retry_delay"].(string); ok {
		if parsed, err := time.ParseDuration(delay); err == nil {
			c.retryDelay = parsed
		}
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if skipVerify, ok := config.Options["tls_skip_verify"].(bool); ok && skipVerify {
		tlsConfig.InsecureSkipVerify = true
		c.logger.Printf("WARNING: TLS verification disabled for %s", config.Name)
	}

	transport := &http.Transport{
		TLSClientConfig: tlsConfig,
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	c.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	c.logger.Printf("Connected to HTTP API: %s (auth=%s, timeout=%v, max_retries=%d)",
		config.Name, c.authType, timeout, c.maxRetries)

	return nil
}

// Close releases idle connections.
func (c *Connection) Close(ctx context.Context) error {
	if c.httpClient != nil && c.httpClient.Transport != nil {
		if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
	c.logger.Printf("Disconnected from HTTP API: %s", c.Name())
	return nil
}

// HealthCheck issues a GET to the configured health path (default "/").
func (c *Connection) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.baseURL == "" {
		return &base.HealthStatus{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     "base URL not configured",
		}, nil
	}

	healthPath := "/"
	if c.config != nil && c.config.Options != nil {
		if hp, ok := c.config.Options["health_path"].(string); ok {
			healthPath = hp
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	c.applyAuth(req)
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return &base.HealthStatus{
		Healthy: resp.StatusCode >= 200 && resp.StatusCode < 400,
		Latency: latency,
		Details: map[string]string{
			"base_url":    c.baseURL,
			"status_code": strconv.Itoa(resp.StatusCode),
			"auth_type":   c.authType,
		},
		Timestamp: time.Now(),
	}, nil
}

// Do performs the rendered request with bounded retries. Transient failures
// (transport errors, 408/429/5xx) retry with exponential backoff for GET;
// other methods are sent at most once. The final response is returned
// whatever its status code.
func (c *Connection) Do(ctx context.Context, apiReq *base.APIRequest) (*base.APIResult, error) {
	if c.httpClient == nil {
		return nil, base.NewConnectorError(c.Name(), "Do", "connection not established", nil)
	}

	method := strings.ToUpper(apiReq.Method)
	if method == "" {
		method = http.MethodGet
	}

	path := apiReq.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	reqURL := c.baseURL + path

	maxRetries := c.maxRetries
	if method != http.MethodGet {
		maxRetries = 0
	}

	start := time.Now()
	var lastErr error
	var resp *http.Response

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			c.logger.Printf("Retry attempt %d/%d after %v", attempt, maxRetries, delay)

			select {
			case <-ctx.Done():
				return nil, base.NewConnectorError(c.Name(), "Do", "context cancelled during retry", ctx.Err())
			case <-time.After(delay):
			}
		}

		var bodyReader io.Reader
		if len(apiReq.Body) > 0 {
			bodyReader = bytes.NewReader(apiReq.Body)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Do", "failed to create request", err)
		}

		c.applyAuth(req)
		c.applyHeaders(req)
		for key, val := range apiReq.Headers {
			req.Header.Set(key, val)
		}
		if len(apiReq.Body) > 0 && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && !c.isRetryableStatusCode(resp.StatusCode) {
			break
		}

		if resp != nil && attempt < maxRetries {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			resp = nil
		}
	}

	if lastErr != nil {
		return nil, base.NewConnectorError(c.Name(), "Do", "request failed after retries", lastErr)
	}
	defer func() { _ = resp.Body.Close() }()

	duration := time.Since(start)

	limitedReader := io.LimitReader(resp.Body, c.maxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Do", "failed to read response", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, base.NewConnectorError(c.Name(), "Do",
			fmt.Sprintf("response size exceeds limit of %d bytes", c.maxResponseSize), nil)
	}

	c.logger.Printf("HTTP %s %s: status=%d, %v", method, base.SanitizeLogString(path), resp.StatusCode, duration)

	return &base.APIResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   duration,
		Connection: c.Name(),
	}, nil
}

// Name returns the connection name.
func (c *Connection) Name() string {
	if c.config != nil {
		return c.config.Name
	}
	return "http"
}

// Type returns the connection type.
func (c *Connection) Type() string {
	return "http"
}

// applyAuth applies the configured authentication to the request.
func (c *Connection) applyAuth(req *http.Request) {
	switch c.authType {
	case "bearer":
		if token, ok := c.authConfig["token"]; ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case "basic":
		if username, ok := c.authConfig["username"]; ok {
			req.SetBasicAuth(username, c.authConfig["password"])
		}
	case "api-key":
		if key, ok := c.authConfig["api_key"]; ok && key != "" {
			headerName := c.authConfig["header_name"]
			if headerName == "" {
				headerName = "X-API-Key"
			}
			req.Header.Set(headerName, key)
		}
	case "none", "":
	}
}

// applyHeaders applies default and configured headers to the request.
func (c *Connection) applyHeaders(req *http.Request) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Smarter-HTTP-Connection/1.0")
	}
	for key, val := range c.headers {
		req.Header.Set(key, val)
	}
}

// calculateBackoff returns the exponential backoff delay for an attempt.
func (c *Connection) calculateBackoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}

// isRetryableStatusCode reports whether the status indicates a transient
// failure.
func (c *Connection) isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
