package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("xoxb-bot", "xoxp-user")
	c.base = srv.URL
	return c
}

func TestPostMessageReturnsTS(t *testing.T) {
	var got Message
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-bot", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "123.456"})
	})

	ts, err := c.PostMessage(context.Background(), Message{Channel: "C1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "123.456", ts)
	assert.Equal(t, "C1", got.Channel)
}

func TestPostMessageAPIFailure(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	})

	_, err := c.PostMessage(context.Background(), Message{Channel: "C1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "channel_not_found", apiErr.Code)
}

func TestScheduleMessageCarriesPostAtAndRejectionCode(t *testing.T) {
	postAt := time.Date(2025, time.November, 20, 19, 0, 0, 0, time.UTC)

	var got Message
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.scheduleMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "time_too_far"})
	})

	err := c.ScheduleMessage(context.Background(), Message{Channel: "C1", Text: "later"}, postAt)
	assert.Equal(t, postAt.Unix(), got.PostAt)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrTimeTooFar, apiErr.Code)
}

func TestSearchMessagesUsesUserToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.messages", r.URL.Path)
		assert.Equal(t, "Bearer xoxp-user", r.Header.Get("Authorization"))
		assert.Equal(t, `in:#chan "Week_Sat_15th_Nov_2025"`, r.URL.Query().Get("query"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": map[string]any{
				"matches": []map[string]any{
					{"ts": "100.1", "thread_ts": "100.1"},
					{"ts": "200.2", "thread_ts": "100.1"},
					{"ts": "300.3"},
				},
			},
		})
	})

	matches, err := c.SearchMessages(context.Background(), `in:#chan "Week_Sat_15th_Nov_2025"`, 20)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.True(t, matches[0].IsParent())
	assert.False(t, matches[1].IsParent())
	assert.True(t, matches[2].IsParent(), "message without thread_ts is a parent")
}

func TestDeleteAndEphemeral(t *testing.T) {
	var paths []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	require.NoError(t, c.DeleteMessage(context.Background(), "C1", "100.1"))
	require.NoError(t, c.PostEphemeral(context.Background(), "C1", "U1", "done"))
	assert.Equal(t, []string{"/chat.delete", "/chat.postEphemeral"}, paths)
}

func TestScheduledMessagesList(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.scheduledMessages.list", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"scheduled_messages": []map[string]any{
				{"id": "Q1", "channel_id": "C1", "post_at": 1763665200, "text": "reminder"},
			},
		})
	})

	msgs, err := c.ScheduledMessages(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Q1", msgs[0].ID)
	assert.Equal(t, int64(1763665200), msgs[0].PostAt)
}

func TestHTTPErrorStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false}`))
	})

	err := c.DeleteMessage(context.Background(), "C1", "100.1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}
