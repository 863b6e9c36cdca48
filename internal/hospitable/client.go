package hospitable

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

const defaultBaseURL = "https://public.api.hospitable.com/v2"

// Reservation is the stay metadata the router reads. Check-in/out keep the
// fixed UTC offset they arrive with; render them as-is, never converted.
type Reservation struct {
	CheckIn        time.Time
	CheckOut       time.Time
	Platform       string
	ConversationID string
}

type Client struct {
	hc    *http.Client
	token string
	base  string
}

func New(token string) *Client {
	return &Client{
		hc:    &http.Client{Timeout: 10 * time.Second},
		token: token,
		base:  defaultBaseURL,
	}
}

// Reservation fetches stay metadata for a reservation ID. Any failure — a
// transport error, a non-2xx status, or an unparseable body — logs and
// returns nil; reservation context is best-effort and never fails a batch.
func (c *Client) Reservation(ctx context.Context, id string) *Reservation {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/reservations/"+id, nil)
	if err != nil {
		log.Printf("hospitable: build request: %v", err)
		return nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.hc.Do(req)
	if err != nil {
		log.Printf("hospitable: fetch reservation %s: %v", id, err)
		return nil
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		log.Printf("hospitable: fetch reservation %s: status=%d", id, res.StatusCode)
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		log.Printf("hospitable: read reservation %s: %v", id, err)
		return nil
	}

	var payload struct {
		Data struct {
			CheckIn        string `json:"check_in"`
			CheckOut       string `json:"check_out"`
			Platform       string `json:"platform"`
			ConversationID string `json:"conversation_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("hospitable: decode reservation %s: %v", id, err)
		return nil
	}

	r := &Reservation{
		Platform:       payload.Data.Platform,
		ConversationID: payload.Data.ConversationID,
	}
	// RFC3339 parsing keeps the offset as a fixed zone on the Time value.
	if t, err := time.Parse(time.RFC3339, payload.Data.CheckIn); err == nil {
		r.CheckIn = t
	}
	if t, err := time.Parse(time.RFC3339, payload.Data.CheckOut); err == nil {
		r.CheckOut = t
	}
	return r
}
