// Package checkoutclient is the caller side of the retry policy: it asks the
// ordering API whether a failed payment may be retried and degrades to a
// bounded fail-open answer when the API cannot be reached.
package checkoutclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxAttempts   = 3
	DefaultFailOpenLimit = 3
	// DefaultFailOpenWindow is how long a payment id's degraded grants are remembered.
	DefaultFailOpenWindow = time.Hour
	// DefaultFailOpenTracked caps the number of payment ids remembered at once.
	DefaultFailOpenTracked = 10000

	defaultMaxRetries           = 2
	defaultBackoffBase          = 100 * time.Millisecond
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("checkout api base url is required")

// RetryStatus mirrors the server's retry-status payload. Degraded is set only
// on fail-open answers produced locally.
type RetryStatus struct {
	CanRetry          bool `json:"canRetry"`
	RemainingAttempts int  `json:"remainingAttempts"`
	AttemptsUsed      int  `json:"attemptsUsed"`
	MaxAttempts       int  `json:"maxAttempts"`
	PurchaseCompleted bool `json:"purchaseCompleted"`
	Degraded          bool `json:"degraded,omitempty"`
}

// OrderStatus is the subset of the order view support tooling prints.
type OrderStatus struct {
	OrderID             string     `json:"orderId"`
	OrderNumber         string     `json:"orderNumber"`
	Status              string     `json:"status"`
	StatusLabel         string     `json:"statusLabel"`
	Total               string     `json:"total"`
	Currency            string     `json:"currency"`
	RefundStatus        string     `json:"refundStatus"`
	EstimatedDeliveryAt *time.Time `json:"estimatedDeliveryAt,omitempty"`
}

// Client talks to the ordering API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	timeout       time.Duration
	maxRetries    uint64
	backoffBase   time.Duration
	maxAttempts   int
	failOpenLimit int
	logger        *logger.Logger
	metrics       *metrics.CheckoutMetrics

	failOpenWindow  time.Duration
	failOpenTracked int
	now             func() time.Time

	mu       sync.Mutex
	failOpen map[string]failOpenGrant
}

type failOpenGrant struct {
	count int
	since time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout applied to every check.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries configures transport retries before failing open.
func WithRetries(maxRetries uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if base > 0 {
			c.backoffBase = base
		}
	}
}

// WithFailOpenLimit bounds how many degraded grants one payment id may receive.
func WithFailOpenLimit(limit int) Option {
	return func(c *Client) {
		if limit >= 0 {
			c.failOpenLimit = limit
		}
	}
}

// WithFailOpenMemory sets how long grants are remembered per payment id and
// how many payment ids are tracked. Once over the cap the oldest entry is dropped.
func WithFailOpenMemory(window time.Duration, tracked int) Option {
	return func(c *Client) {
		if window > 0 {
			c.failOpenWindow = window
		}
		if tracked > 0 {
			c.failOpenTracked = tracked
		}
	}
}

// WithMaxAttempts sets the budget reported on fail-open answers.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) { c.logger = logg }
}

func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client for the ordering API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:       trimmed,
		httpClient:    &http.Client{},
		timeout:       DefaultTimeout,
		maxRetries:    defaultMaxRetries,
		backoffBase:   defaultBackoffBase,
		maxAttempts:   DefaultMaxAttempts,
		failOpenLimit: DefaultFailOpenLimit,

		failOpenWindow:  DefaultFailOpenWindow,
		failOpenTracked: DefaultFailOpenTracked,
		now:             time.Now,
		failOpen:        map[string]failOpenGrant{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// RetryStatus asks the server whether the payment's purchase may be retried.
// Transport failures are retried with backoff; once exhausted the client fails
// open with a degraded full-budget answer, at most failOpenLimit times per
// payment id, and fails closed afterwards. The server still enforces the
// budget at initiation.
func (c *Client) RetryStatus(ctx context.Context, paymentID string) (RetryStatus, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return RetryStatus{}, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var status RetryStatus
	err := c.getWithRetry(ctx, "/api/v1/payments/"+url.PathEscape(paymentID)+"/retry-status", &status)
	if err == nil {
		c.metrics.IncRetryCheck("ok")
		return status, nil
	}

	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		c.metrics.IncRetryCheck("rejected")
		return RetryStatus{}, err
	}

	if !c.grantFailOpen(paymentID) {
		c.metrics.IncRetryCheck("fail_closed")
		c.warn(ctx, paymentID, "retry status unavailable, fail-open limit reached", err)
		return RetryStatus{}, err
	}

	c.metrics.IncRetryCheck("fail_open")
	c.metrics.IncFailOpen()
	c.warn(ctx, paymentID, "retry status unavailable, failing open", err)
	return RetryStatus{
		CanRetry:          true,
		RemainingAttempts: c.maxAttempts,
		MaxAttempts:       c.maxAttempts,
		Degraded:          true,
	}, nil
}

// OrderStatus fetches the customer-facing order view.
func (c *Client) OrderStatus(ctx context.Context, orderID, cartSession string) (OrderStatus, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderStatus{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	var out OrderStatus
	err := c.getWithRetry(ctx, "/api/v1/orders/"+url.PathEscape(orderID), &out, withHeader("X-Cart-Session", cartSession))
	return out, err
}

func (c *Client) grantFailOpen(paymentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	grant, ok := c.failOpen[paymentID]
	if !ok || now.Sub(grant.since) >= c.failOpenWindow {
		if !ok && len(c.failOpen) >= c.failOpenTracked {
			c.pruneFailOpen(now)
		}
		grant = failOpenGrant{since: now}
	}
	if grant.count >= c.failOpenLimit {
		return false
	}
	grant.count++
	c.failOpen[paymentID] = grant
	return true
}

// pruneFailOpen drops expired grants, then the oldest one if still at the cap.
// Callers hold c.mu.
func (c *Client) pruneFailOpen(now time.Time) {
	oldestID, oldest := "", now
	for id, grant := range c.failOpen {
		if now.Sub(grant.since) >= c.failOpenWindow {
			delete(c.failOpen, id)
			continue
		}
		if !grant.since.After(oldest) {
			oldestID, oldest = id, grant.since
		}
	}
	if len(c.failOpen) >= c.failOpenTracked && oldestID != "" {
		delete(c.failOpen, oldestID)
	}
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) {
		if strings.TrimSpace(value) != "" {
			r.Header.Set(key, value)
		}
	}
}

func (c *Client) getWithRetry(ctx context.Context, path string, out any, opts ...requestOption) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.get(ctx, path, out, opts...)
		if err != nil && pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) get(ctx context.Context, path string, out any, opts ...requestOption) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build checkout api request")
	}
	httpReq.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(httpReq)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute checkout api request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "checkout api unavailable")
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout api response")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout api payload")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Details any `json:"details"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("checkout api status %d", resp.StatusCode)).WithStatus(resp.StatusCode)
	}
	return pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message).
		WithDetails(envelope.Details).
		WithStatus(resp.StatusCode)
}

func (c *Client) warn(ctx context.Context, paymentID, msg string, err error) {
	if c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{
		"payment_id": paymentID,
		"error":      err.Error(),
	})
	c.logger.Warn(ctx, msg)
}
