// Package status talks to the backend's request/response surface: the authoritative
// status snapshot and the auto-trade commands.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"options-flow-tracker/models"
)

// Backend endpoints, relative to the base URL
const (
	PathStatus  = "/auto-trade/status"
	PathEnable  = "/auto-trade/enable"
	PathDisable = "/auto-trade/disable"
	PathSim     = "/auto-trade/simulate"
)

const maxErrorBody = 512

// Client is the backend REST client
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Entry
	now        func() time.Time
}

// Options configures a Client
type Options struct {
	Timeout        time.Duration // 0 means no client-side timeout
	CommandsPerSec float64       // <= 0 disables command throttling
	HTTPClient     *http.Client
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, opts Options, logger *logrus.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.CommandsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.CommandsPerSec), 1)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		log:        logger.WithField("component", "status"),
		now:        time.Now,
	}
}

// simulateRequest is the body of the simulate endpoint
type simulateRequest struct {
	Symbol string           `json:"symbol"`
	Side   models.TradeSide `json:"side"`
}

// FetchSnapshot performs one status call. Any failure is a *models.FetchFailedError.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	const op = "fetch snapshot"

	req, err := c.newRequest(ctx, http.MethodGet, PathStatus, nil)
	if err != nil {
		return nil, &models.FetchFailedError{Operation: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.FetchFailedError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.FetchFailedError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", readErrorBody(resp.Body)),
		}
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, &models.FetchFailedError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	snap.Normalize()
	snap.FetchedAt = c.now()

	c.log.WithFields(logrus.Fields{
		"enabled":       snap.Enabled,
		"positions":     len(snap.Positions),
		"recent_orders": len(snap.RecentOrders),
		"signals":       len(snap.Signals),
	}).Debug("Snapshot fetched")
	return &snap, nil
}

// EnableAutoTrade asks the backend to start auto-trading
func (c *Client) EnableAutoTrade(ctx context.Context) error {
	return c.post(ctx, "enable auto-trade", PathEnable, nil)
}

// DisableAutoTrade asks the backend to stop auto-trading
func (c *Client) DisableAutoTrade(ctx context.Context) error {
	return c.post(ctx, "disable auto-trade", PathDisable, nil)
}

// SimulateTrade asks the backend to place a simulated trade
func (c *Client) SimulateTrade(ctx context.Context, symbol string, side models.TradeSide) error {
	if symbol == "" || !side.Valid() {
		return &models.CommandRejectedError{
			Command: "simulate trade",
			Body:    fmt.Sprintf("invalid request symbol=%q side=%q", symbol, side),
		}
	}
	return c.post(ctx, "simulate trade", PathSim, simulateRequest{Symbol: symbol, Side: side})
}

// post sends a command. Transport failures are FetchFailed; non-2xx answers are CommandRejected.
func (c *Client) post(ctx context.Context, command, path string, body interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &models.FetchFailedError{Operation: command, Err: fmt.Errorf("rate limit: %w", err)}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &models.FetchFailedError{Operation: command, Err: fmt.Errorf("marshal body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, reader)
	if err != nil {
		return &models.FetchFailedError{Operation: command, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.FetchFailedError{Operation: command, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &models.CommandRejectedError{
			Command:    command,
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.WithField("command", command).Info("✅ Command accepted")
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
