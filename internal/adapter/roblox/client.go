// Package roblox implements the presence source and the game-name resolver against the public Roblox web APIs.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/retry"
	"github.com/pscheid92/playtime/internal/platform/version"
)

const (
	endpointPresence = "presence"
	endpointGames    = "games"

	// maxUniverseIDsPerRequest is the games API limit for one multiget call.
	maxUniverseIDsPerRequest = 50
	maxErrorBodyBytes        = 512

	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

type Config struct {
	PresenceURL       string
	GamesURL          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             retry.Policy
}

// Client talks to presence.roblox.com and games.roblox.com. All requests share one rate limiter
// and one circuit breaker.
type Client struct {
	httpClient  *http.Client
	presenceURL string
	gamesURL    string
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	retry       retry.Policy
	metrics     *metrics.UpstreamMetrics
}

var (
	_ domain.PresenceSource = (*Client)(nil)
	_ domain.NameResolver   = (*Client)(nil)
)

// NewClient creates a Roblox API client. Metrics may be nil.
func NewClient(cfg Config, upstream *metrics.UpstreamMetrics, breakers *metrics.BreakerMetrics) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "roblox",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// A rejected request proves the API is reachable.
			var statusErr *retry.StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			breakers.Record(name, to.String(), breakerStateValue(to))
		},
	})

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		presenceURL: cfg.PresenceURL,
		gamesURL:    cfg.GamesURL,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		breaker:     breaker,
		retry:       cfg.Retry,
		metrics:     upstream,
	}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

type presenceRequest struct {
	UserIDs []domain.EntityID `json:"userIds"`
}

type presenceResponse struct {
	UserPresences []domain.RawPresence `json:"userPresences"`
}

// FetchPresence fetches the presence of all ids in one request. Any failure wraps domain.ErrPresenceUnavailable.
func (c *Client) FetchPresence(ctx context.Context, ids []domain.EntityID) ([]domain.RawPresence, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(presenceRequest{UserIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to encode presence request: %w", err)
	}

	p := c.retry
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Presence fetch failed, retrying", "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}

	resp, err := retry.Do(ctx, p, classify, func() (presenceResponse, error) {
		var out presenceResponse
		err := c.do(ctx, endpointPresence, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.presenceURL, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		}, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPresenceUnavailable, err)
	}

	return resp.UserPresences, nil
}

type gamesResponse struct {
	Data []struct {
		ID   domain.ActivityID `json:"id"`
		Name string            `json:"name"`
	} `json:"data"`
}

// ResolveNames looks up game names by universe ID. A failed chunk is logged and skipped so that
// callers fall back to location text; the returned error joins all chunk failures.
func (c *Client) ResolveNames(ctx context.Context, ids []domain.ActivityID) (map[domain.ActivityID]string, error) {
	names := make(map[domain.ActivityID]string, len(ids))
	var errs []error

	for start := 0; start < len(ids); start += maxUniverseIDsPerRequest {
		chunk := ids[start:min(start+maxUniverseIDsPerRequest, len(ids))]
		if err := c.resolveChunk(ctx, chunk, names); err != nil {
			slog.WarnContext(ctx, "Game name lookup failed", "universe_ids", len(chunk), "error", err)
			errs = append(errs, err)
		}
	}

	return names, errors.Join(errs...)
}

func (c *Client) resolveChunk(ctx context.Context, ids []domain.ActivityID, names map[domain.ActivityID]string) error {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	target := c.gamesURL + "?" + url.Values{"universeIds": {strings.Join(parts, ",")}}.Encode()

	p := c.retry
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.DebugContext(ctx, "Game name lookup failed, retrying", "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}

	resp, err := retry.Do(ctx, p, classify, func() (gamesResponse, error) {
		var out gamesResponse
		err := c.do(ctx, endpointGames, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		}, &out)
		return out, err
	})
	if err != nil {
		return fmt.Errorf("resolve game names: %w", err)
	}

	for _, g := range resp.Data {
		if g.Name != "" {
			names[g.ID] = g.Name
		}
	}
	return nil
}

// classify stops immediately while the breaker is open; otherwise HTTP rules apply.
func classify(err error) retry.Action {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Stop
	}
	return retry.ClassifyHTTP(err)
}

// do performs one rate-limited, breaker-guarded request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, endpoint string, newRequest func() (*http.Request, error), out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.breaker.Execute(func() (any, error) {
		req, err := newRequest()
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.observe(endpoint, "error", time.Since(start))
			return nil, fmt.Errorf("%s request: %w", endpoint, err)
		}
		defer func() { _ = resp.Body.Close() }()
		c.observe(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
			slog.DebugContext(ctx, "Upstream returned error status", "endpoint", endpoint, "status", resp.StatusCode, "body", string(snippet))
			return nil, &retry.StatusError{StatusCode: resp.StatusCode, URL: req.URL.Host + req.URL.Path}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint, status string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	c.metrics.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
