package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zeu5/driving-rl/checkpoint"
)

// Client fetches model snapshots from a trainer node
type Client struct {
	base   string
	client *http.Client
}

// NewClient accepts either host:port or a full base URL
func NewClient(addr string, timeout time.Duration) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

// Latest returns the newest checkpoint known to the trainer.
// checkpoint.ErrNoCheckpoint is returned when the trainer has none yet.
func (c *Client) Latest(ctx context.Context) (*checkpoint.Checkpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/latest", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching latest model: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, checkpoint.ErrNoCheckpoint
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("trainer responded %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	cp := &checkpoint.Checkpoint{}
	if err := json.NewDecoder(resp.Body).Decode(cp); err != nil {
		return nil, fmt.Errorf("decoding latest model: %w", err)
	}
	return cp, nil
}
