// Package debrid adapts the reconciliation engine to the Real-Debrid
// torrent-lifecycle REST API: submitting magnets, polling status, file
// selection, and deletion.
package debrid

import (
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

const serviceName = "debrid"

// Client talks to the Real-Debrid REST API.
type Client struct {
	baseURL string
	http    *request.Client
	limiter *ratelimiter.Manager
	logger  zerolog.Logger
}

// New builds a debrid Client authenticated with apiKey against baseURL.
func New(baseURL, apiKey string, limiter *ratelimiter.Manager) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: request.New(
			request.WithHeaders(map[string]string{"Authorization": "Bearer " + apiKey}),
			request.WithMaxRetries(3),
			request.WithRetryableStatus(http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout),
		),
		limiter: limiter,
		logger:  logger.New(serviceName),
	}
}

func (c *Client) request(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, *http.Response, error) {
	if err := c.limiter.Acquire(ctx, serviceName); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
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
	return data, resp, nil
}

// User is the authenticated account as reported by the debrid.
type User struct {
	Username string `json:"username"`
	Type     string `json:"type"`
	Premium  int    `json:"premium"`
}

// GetUser resolves the authenticated account.
func (c *Client) GetUser(ctx context.Context) (User, error) {
	data, resp, err := c.request(ctx, http.MethodGet, "/user", nil, "")
	if err != nil {
		return User{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("decoding user: %w", err)
	}
	return user, nil
}

// GetActiveCount returns the number of currently active torrent slots.
func (c *Client) GetActiveCount(ctx context.Context) (int, error) {
	data, resp, err := c.request(ctx, http.MethodGet, "/torrents/activeCount", nil, "")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}
	var result struct {
		Nb int `json:"nb"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("decoding active count: %w", err)
	}
	return result.Nb, nil
}

// GetTorrents returns up to limit torrents currently tracked by the debrid.
func (c *Client) GetTorrents(ctx context.Context, limit int) ([]types.Torrent, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	data, resp, err := c.request(ctx, http.MethodGet, "/torrents?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}
	var torrents []types.Torrent
	if err := json.Unmarshal(data, &torrents); err != nil {
		return nil, fmt.Errorf("decoding torrents: %w", err)
	}
	return torrents, nil
}

// GetTorrentInfo fetches the current status of torrentID, returning
// types.ErrTorrentNotFound if the debrid no longer recognizes it.
func (c *Client) GetTorrentInfo(ctx context.Context, torrentID string) (types.Torrent, error) {
	data, resp, err := c.request(ctx, http.MethodGet, "/torrents/info/"+torrentID, nil, "")
	if err != nil {
		return types.Torrent{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return types.Torrent{}, types.ErrTorrentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return types.Torrent{}, fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}
	var t types.Torrent
	if err := json.Unmarshal(data, &t); err != nil {
		return types.Torrent{}, fmt.Errorf("decoding torrent info: %w", err)
	}
	return t, nil
}

// AddMagnet submits an infohash as a magnet link and returns the new
// torrent id. Returns types.ErrContentInfringement or
// types.ErrTooManyActiveDownloads for the debrid's corresponding error
// responses.
func (c *Client) AddMagnet(ctx context.Context, infohash string) (string, error) {
	magnet := fmt.Sprintf("magnet:?xt=urn:btih:%s", infohash)
	payload := url.Values{"magnet": {magnet}}

	data, resp, err := c.request(ctx, http.MethodPost, "/torrents/addMagnet", strings.NewReader(payload.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusForbidden:
		return "", types.ErrContentInfringement
	case 509:
		return "", types.ErrTooManyActiveDownloads
	default:
		return "", fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decoding addMagnet result: %w", err)
	}
	return result.ID, nil
}

// SelectFiles marks all files in torrentID for download, which starts it.
func (c *Client) SelectFiles(ctx context.Context, torrentID string) error {
	payload := url.Values{"files": {"all"}}
	data, resp, err := c.request(ctx, http.MethodPost, "/torrents/selectFiles/"+torrentID, strings.NewReader(payload.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return types.ErrTorrentNotFound
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// DeleteTorrent removes a torrent from the debrid's inventory.
func (c *Client) DeleteTorrent(ctx context.Context, torrentID string) error {
	data, resp, err := c.request(ctx, http.MethodDelete, "/torrents/delete/"+torrentID, nil, "")
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		// Already gone; treat deletion as having succeeded.
		return nil
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("debrid API error: status %d: %s", resp.StatusCode, string(data))
	}
	c.logger.Info().Str("torrent", torrentID).Msg("torrent deleted from debrid")
	return nil
}
