// Package prisonapi is the HTTP client for the prison system of record.
// It satisfies the search domain's SnapshotSource port.
package prisonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
	dErrors "prisoner-search/pkg/domain-errors"
	"prisoner-search/pkg/platform/circuit"
	pstrings "prisoner-search/pkg/platform/strings"
)

const defaultPageSize = 1000

// Client talks to the prison API over HTTP. A circuit breaker sheds load
// while the API is down so reconciles fail fast and stay on the queue
// instead of piling up on timeouts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithPageSize sets how many prisoners StreamAll requests per page.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithBreaker replaces the default circuit breaker, for tuning thresholds
// or the cooldown.
func WithBreaker(breaker *circuit.Breaker) Option {
	return func(c *Client) {
		if breaker != nil {
			c.breaker = breaker
		}
	}
}

// WithLogger attaches a logger for breaker state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the prison API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("prison api base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid prison api base url: %w", err)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		pageSize:   defaultPageSize,
		breaker:    circuit.New("prison-api", circuit.WithFailureThreshold(5)),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Fetch returns the current snapshot for one prisoner, or nil when the
// system of record no longer knows the identity. A 404 is the absent case,
// not an error: deletions surface this way.
func (c *Client) Fetch(ctx context.Context, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error) {
	endpoint := c.baseURL + "/api/prisoners/" + url.PathEscape(prisonerNumber.String())
	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("prison api returned %d for %s", status, prisonerNumber))
	}

	var prisoner models.Prisoner
	if err := json.Unmarshal(body, &prisoner); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode prisoner snapshot")
	}
	normalise(&prisoner)
	return &prisoner, nil
}

// normalise cleans up source data before it reaches the diff and hash
// stages: duplicate or padded alert codes would otherwise show up as
// spurious changes.
func normalise(prisoner *models.Prisoner) {
	prisoner.Alerts = pstrings.DedupeAndTrim(prisoner.Alerts)
}

// StreamAll pages through the full prisoner population and invokes fn for
// each snapshot. An empty page terminates the stream.
func (c *Client) StreamAll(ctx context.Context, fn func(*models.Prisoner) error) error {
	for page := 0; ; page++ {
		endpoint := c.baseURL + "/api/prisoners?page=" + strconv.Itoa(page) + "&size=" + strconv.Itoa(c.pageSize)
		body, status, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("prison api returned %d for page %d", status, page))
		}

		var prisoners []*models.Prisoner
		if err := json.Unmarshal(body, &prisoners); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode prisoner page")
		}
		if len(prisoners) == 0 {
			return nil
		}
		for _, prisoner := range prisoners {
			normalise(prisoner)
			if err := fn(prisoner); err != nil {
				return err
			}
		}
		if len(prisoners) < c.pageSize {
			return nil
		}
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	if !c.breaker.Allow() {
		return nil, 0, dErrors.New(dErrors.CodeUnavailable, "prison api circuit open")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build prison api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return nil, 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "prison api request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx)
	} else {
		c.recordSuccess(ctx)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read prison api response")
	}
	return body, resp.StatusCode, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "prison api circuit opened")
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "prison api circuit closed")
	}
}
