package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a minimal Slack Web API client covering the methods this service
// needs: chat.postMessage, chat.scheduleMessage, chat.delete,
// chat.postEphemeral, chat.scheduledMessages.list, and search.messages.
//
// Most calls authenticate with the bot token; search.messages requires a user
// OAuth token.
type Client struct {
	hc        *http.Client
	botToken  string
	userToken string
	base      string
}

func New(botToken, userToken string) *Client {
	return &Client{
		hc:        &http.Client{Timeout: 10 * time.Second},
		botToken:  botToken,
		userToken: userToken,
		base:      "https://slack.com/api",
	}
}

// Scheduling rejection codes returned by chat.scheduleMessage.
const (
	ErrTimeInPast  = "time_in_past"
	ErrTimeTooFar  = "time_too_far"
	ErrRateLimited = "restricted_too_many"
)

// APIError carries the HTTP status and the Slack "error" code for a failed
// call, so callers can branch on specific rejections.
type APIError struct {
	Method string
	Status int
	Code   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack %s failed: %s (status=%d)", e.Method, e.Code, e.Status)
	}
	return fmt.Sprintf("slack %s failed (status=%d)", e.Method, e.Status)
}

// PostMessage posts a message immediately and returns its timestamp.
func (c *Client) PostMessage(ctx context.Context, msg Message) (string, error) {
	var res struct {
		TS string `json:"ts"`
	}
	if err := c.postJSON(ctx, "chat.postMessage", msg, &res); err != nil {
		return "", err
	}
	return res.TS, nil
}

// ScheduleMessage asks Slack to deliver the message at postAt. Rejections
// surface as *APIError with the code set (ErrTimeInPast, ErrTimeTooFar,
// ErrRateLimited, or another Slack error string).
func (c *Client) ScheduleMessage(ctx context.Context, msg Message, postAt time.Time) error {
	msg.PostAt = postAt.Unix()
	return c.postJSON(ctx, "chat.scheduleMessage", msg, nil)
}

// DeleteMessage removes a previously posted message.
func (c *Client) DeleteMessage(ctx context.Context, channel, ts string) error {
	body := map[string]string{"channel": channel, "ts": ts}
	return c.postJSON(ctx, "chat.delete", body, nil)
}

// PostEphemeral sends a message visible only to one user in a channel.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	body := map[string]string{"channel": channel, "user": user, "text": text}
	return c.postJSON(ctx, "chat.postEphemeral", body, nil)
}

type SearchMatch struct {
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	Text     string `json:"text"`
}

// IsParent reports whether the match is a thread root rather than a reply.
func (m SearchMatch) IsParent() bool {
	return m.ThreadTS == "" || m.ThreadTS == m.TS
}

// SearchMessages runs a search.messages query with the user token.
func (c *Client) SearchMessages(ctx context.Context, query string, count int) ([]SearchMatch, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/search.messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.userToken)

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res struct {
		OK       bool   `json:"ok"`
		Err      string `json:"error"`
		Messages struct {
			Matches []SearchMatch `json:"matches"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("search.messages: decode: %w", err)
	}
	if status >= 400 || !res.OK {
		return nil, &APIError{Method: "search.messages", Status: status, Code: res.Err}
	}
	return res.Messages.Matches, nil
}

type ScheduledMessage struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	PostAt      int64  `json:"post_at"`
	Text        string `json:"text"`
	DateCreated int64  `json:"date_created"`
}

// ScheduledMessages lists pending scheduled messages for a channel.
func (c *Client) ScheduledMessages(ctx context.Context, channel string) ([]ScheduledMessage, error) {
	var res struct {
		ScheduledMessages []ScheduledMessage `json:"scheduled_messages"`
	}
	body := map[string]string{"channel": channel}
	if err := c.postJSON(ctx, "chat.scheduledMessages.list", body, &res); err != nil {
		return nil, err
	}
	return res.ScheduledMessages, nil
}

// postJSON posts a bot-token JSON call and decodes the envelope. A non-2xx
// status or ok:false yields an *APIError. When out is non-nil the full
// response body is decoded into it as well.
func (c *Client) postJSON(ctx context.Context, method string, payload any, out any) error {
	jb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(jb))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return err
	}

	var env struct {
		OK  bool   `json:"ok"`
		Err string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	if status >= 400 || !env.OK {
		return &APIError{Method: method, Status: status, Code: env.Err}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: decode: %w", method, err)
		}
	}
	return nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
