// Package library adapts the reconciliation engine to the media-library
// orchestrator's HTTP API: health checks, problem-item discovery, manual
// scraping, and the retry/reset/remove/add lifecycle calls.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rivencompanion/trc/internal/logger"
	"github.com/rivencompanion/trc/internal/ratelimiter"
	"github.com/rivencompanion/trc/internal/request"
	"github.com/rivencompanion/trc/pkg/types"
)

const serviceName = "library"

// Client talks to the orchestrator's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *request.Client
	limiter *ratelimiter.Manager
	logger  zerolog.Logger
}

// New builds a library Client rooted at baseURL (e.g. "http://host:8083").
func New(baseURL, apiKey string, limiter *ratelimiter.Manager) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/api/v1",
		apiKey:  apiKey,
		http:    request.New(request.WithMaxRetries(3), request.WithRetryableStatus(http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout)),
		limiter: limiter,
		logger:  logger.New(serviceName),
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}) ([]byte, *http.Response, error) {
	if err := c.limiter.Acquire(ctx, serviceName); err != nil {
		return nil, nil, err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	u := c.baseURL + endpoint
	if strings.Contains(u, "?") {
		u += "&" + query.Encode()
	} else {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, resp, fmt.Errorf("library API error: status %d: %s", resp.StatusCode, string(data))
	}
	return data, resp, nil
}

// HealthCheck reports whether the orchestrator is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	data, _, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("health check failed")
		return false
	}
	var result struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false
	}
	return result.Message == "True"
}

// GetProblemItems returns items currently in one of the given states,
// falling back to an unfiltered fetch plus local filtering if the
// orchestrator rejects the states query.
func (c *Client) GetProblemItems(ctx context.Context, states []string, limit int) ([]types.MediaItem, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	for _, s := range states {
		q.Add("states", s)
	}

	data, _, err := c.do(ctx, http.MethodGet, "/items", q, nil)
	if err == nil {
		return decodeItems(data)
	}
	c.logger.Error().Err(err).Msg("failed to get problem items with state filter, falling back to local filter")

	fallbackQ := url.Values{}
	fallbackQ.Set("limit", fmt.Sprintf("%d", limit))
	data, _, err2 := c.do(ctx, http.MethodGet, "/items", fallbackQ, nil)
	if err2 != nil {
		return nil, fmt.Errorf("failed to get items even without states: %w", err2)
	}
	all, err := decodeItems(data)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(states))
	for _, s := range states {
		wanted[s] = struct{}{}
	}
	filtered := make([]types.MediaItem, 0, len(all))
	for _, item := range all {
		if _, ok := wanted[item.State]; ok {
			filtered = append(filtered, item)
		}
	}
	c.logger.Info().Int("total", len(all)).Int("filtered", len(filtered)).Msg("fallback: filtered items locally by state")
	return filtered, nil
}

func decodeItems(data []byte) ([]types.MediaItem, error) {
	var result struct {
		Items []types.MediaItem `json:"items"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return result.Items, nil
}

// apiMediaType converts the engine's "show" vocabulary to the
// orchestrator's "tv", leaving "movie" untouched.
func apiMediaType(mediaType string) string {
	if mediaType == "show" || mediaType == "tv" {
		return "tv"
	}
	return "movie"
}

// ScrapeItem triggers a manual scrape for the given external ids, returning
// the candidate streams keyed by infohash.
func (c *Client) ScrapeItem(ctx context.Context, tmdbID, tvdbID, imdbID, mediaType string) (map[string]types.Stream, error) {
	q := url.Values{}
	q.Set("media_type", apiMediaType(mediaType))
	if tmdbID != "" {
		q.Set("tmdb_id", tmdbID)
	}
	if tvdbID != "" {
		q.Set("tvdb_id", tvdbID)
	}
	if imdbID != "" {
		q.Set("imdb_id", imdbID)
	}

	data, _, err := c.do(ctx, http.MethodPost, "/scrape/scrape", q, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Streams map[string]types.Stream `json:"streams"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding scrape result: %w", err)
	}
	return result.Streams, nil
}

// RetryItem asks the orchestrator to retry a failed item in place.
func (c *Client) RetryItem(ctx context.Context, itemID string) bool {
	_, _, err := c.do(ctx, http.MethodPost, "/items/retry", nil, map[string]interface{}{"ids": []string{itemID}})
	if err != nil {
		c.logger.Error().Err(err).Str("item", itemID).Msg("failed to retry item")
		return false
	}
	c.logger.Info().Str("item", itemID).Msg("retried item")
	return true
}

// ResetItem asks the orchestrator to reset an item to start fresh.
func (c *Client) ResetItem(ctx context.Context, itemID string) bool {
	_, _, err := c.do(ctx, http.MethodPost, "/items/reset", nil, map[string]interface{}{"ids": []string{itemID}})
	if err != nil {
		c.logger.Error().Err(err).Str("item", itemID).Msg("failed to reset item")
		return false
	}
	c.logger.Info().Str("item", itemID).Msg("reset item")
	return true
}

// RemoveItem asks the orchestrator to remove an item outright.
func (c *Client) RemoveItem(ctx context.Context, itemID string) bool {
	_, resp, err := c.do(ctx, http.MethodDelete, "/items/remove", nil, map[string]interface{}{"ids": []string{itemID}})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusBadRequest {
			c.logger.Error().Str("item", itemID).Msg("failed to remove item: invalid item id format (400)")
		} else {
			c.logger.Error().Err(err).Str("item", itemID).Msg("failed to remove item")
		}
		return false
	}
	c.logger.Info().Str("item", itemID).Msg("removed item")
	return true
}

// AddItem re-adds an item to the orchestrator by external id.
func (c *Client) AddItem(ctx context.Context, tmdbID, tvdbID, mediaType string) bool {
	payload := map[string]interface{}{"media_type": apiMediaType(mediaType)}
	if tmdbID != "" {
		payload["tmdb_ids"] = []string{tmdbID}
	}
	if tvdbID != "" {
		payload["tvdb_ids"] = []string{tvdbID}
	}

	_, _, err := c.do(ctx, http.MethodPost, "/items/add", nil, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("tmdb", tmdbID).Str("tvdb", tvdbID).Msg("failed to add item")
		return false
	}
	c.logger.Info().Str("tmdb", tmdbID).Str("tvdb", tvdbID).Msg("added item")
	return true
}

// GetItemByIDs searches the current problem-item feed for an item matching
// either external id. Returns types.ErrItemNotFound if no match exists.
func (c *Client) GetItemByIDs(ctx context.Context, tmdbID, tvdbID string) (types.MediaItem, error) {
	items, err := c.GetProblemItems(ctx, []string{"Failed", "Unknown"}, 100)
	if err != nil {
		return types.MediaItem{}, fmt.Errorf("failed to get item by ids: %w", err)
	}
	for _, item := range items {
		if tmdbID != "" && item.TMDBID == tmdbID {
			return item, nil
		}
		if tvdbID != "" && item.TVDBID == tvdbID {
			return item, nil
		}
	}
	return types.MediaItem{}, types.ErrItemNotFound
}
