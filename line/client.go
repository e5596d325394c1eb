package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	replyEndpoint   = "https://api.line.me/v2/bot/message/reply"
	profileEndpoint = "https://api.line.me/v2/bot/profile/"

	// Message content lives on the data host, not the messaging API host.
	contentEndpoint = "https://api-data.line.me/v2/bot/message/%s/content"

	// Platform image messages are a few MB at most; cap the download so a
	// misbehaving response cannot balloon memory.
	maxContentBytes = 16 << 20
)

// Client talks to the platform's REST API. Every call carries a bounded
// timeout; expiry surfaces as an ordinary error and takes the generic
// degraded path upstream.
type Client struct {
	Token  string
	HTTP   *http.Client
	Logger *logrus.Logger
}

func NewClient(token string, logger *logrus.Logger) *Client {
	return &Client{
		Token:  token,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// Reply sends up to five message descriptors against one reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	body, err := json.Marshal(replyRequest{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, replyEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reply failed: status=%d body=%s", resp.StatusCode, string(detail))
	}
	return nil
}

// Content downloads the binary payload of one message (image bytes for image
// messages).
func (c *Client) Content(ctx context.Context, messageID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(contentEndpoint, messageID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content download failed: status=%d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
}

type profileResponse struct {
	DisplayName string `json:"displayName"`
}

// Profile fetches a user's display name from the platform.
func (c *Client) Profile(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileEndpoint+userID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile lookup failed: status=%d", resp.StatusCode)
	}
	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	return profile.DisplayName, nil
}
