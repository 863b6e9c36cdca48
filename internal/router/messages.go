package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/hostbuddy-notifier/internal/hospitable"
	"github.com/example/hostbuddy-notifier/internal/slack"
)

// ResolveActionID is the block-actions action_id carried by the Resolved
// button on default alerts.
const ResolveActionID = "resolve_action_item"

// ResolvePayload is the opaque button value embedded in a default alert. It
// carries enough of the item to reconstruct it when the button is clicked.
type ResolvePayload struct {
	ItemID        string `json:"item_id"`
	PropertyName  string `json:"property_name"`
	GuestName     string `json:"guest_name"`
	ReservationID string `json:"reservation_id"`
	Item          string `json:"item"`
	Category      string `json:"category"`
}

// dispatchDefault posts the general alert with the Resolved button. Every
// item gets one of these regardless of the other rules.
func (r *Router) dispatchDefault(ctx context.Context, item ActionItem, res *hospitable.Reservation) error {
	value, err := json.Marshal(ResolvePayload{
		ItemID:        item.ID,
		PropertyName:  item.PropertyName,
		GuestName:     item.GuestName,
		ReservationID: item.ReservationID,
		Item:          item.Item,
		Category:      item.Category,
	})
	if err != nil {
		return err
	}

	msg := slack.Message{
		Channel: r.Routing.DefaultChannel,
		Text:    fmt.Sprintf("New action item for %s", orNA(item.GuestName)),
		Blocks: []slack.Block{
			slack.Section(itemDetails(item, res)),
			slack.Button("Resolved", ResolveActionID, string(value)),
		},
	}
	if _, err := r.Slack.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post default alert: %w", err)
	}
	return nil
}

// dispatchArrivalDeparture posts to the review channel, tagging the
// reviewers and threading under the week thread when the check-in is known.
// A locator failure degrades to an unthreaded post.
func (r *Router) dispatchArrivalDeparture(ctx context.Context, item ActionItem, res *hospitable.Reservation) error {
	var threadTS string
	if res != nil && !res.CheckIn.IsZero() {
		ts, err := r.Threads.FindOrCreate(ctx, res.CheckIn)
		if err != nil {
			log.Printf("router: week thread unavailable, posting to main channel: %v", err)
		} else {
			threadTS = ts
		}
	}

	greeting := "Hi " + mentionList(r.Routing.ReviewerMentions)
	msg := slack.Message{
		Channel:  r.Routing.ReviewChannel,
		Text:     fmt.Sprintf("%s - New arrival/departure action item for %s", greeting, orNA(item.GuestName)),
		ThreadTS: threadTS,
		Blocks: []slack.Block{
			slack.Section(greeting + "\n\n" + itemDetails(item, res)),
		},
	}
	if _, err := r.Slack.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post arrival/departure alert: %w", err)
	}
	return nil
}

// dispatchAddressRequest posts the static unit-number warning to the ops
// channel. The item itself carries no extra information worth rendering.
func (r *Router) dispatchAddressRequest(ctx context.Context, item ActionItem, _ *hospitable.Reservation) error {
	msg := slack.Message{
		Channel: r.Routing.OpsChannel,
		Text:    "🚨 Please do not share the unit number before check-in",
		Blocks: []slack.Block{
			slack.Section(fmt.Sprintf("🚨 *ALERT: Address Request for %s*\n\nPlease do not share the unit number before check-in.", r.Routing.ReviewPropertyCode)),
		},
	}
	if _, err := r.Slack.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post address-request alert: %w", err)
	}
	return nil
}

// postSentimentFailsafe fires when sentiment turned negative but no
// reservation context could be fetched: ping the on-call user instead of
// scheduling anything.
func (r *Router) postSentimentFailsafe(ctx context.Context, item ActionItem) error {
	md := fmt.Sprintf("⚠️ <@%s> *Negative sentiment detected but reservation data unavailable*\n\n*🏠 Property:* %s\n*👤 Guest:* %s\n*📝 Description:* %s\n\nCould not fetch reservation data from Hospitable API. Please manually check and schedule review reminder.",
		r.Routing.OnCallMention, orNA(item.PropertyName), orNA(item.GuestName), flattened(item.Item))

	msg := slack.Message{
		Channel: r.Routing.OpsChannel,
		Text:    "⚠️ Negative sentiment detected but reservation data unavailable",
		Blocks:  []slack.Block{slack.Section(md)},
	}
	if _, err := r.Slack.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post sentiment failsafe: %w", err)
	}
	return nil
}

// itemDetails renders the shared property/guest/stay/description/category
// section used by the default and arrival/departure alerts.
func itemDetails(item ActionItem, res *hospitable.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*🏠 Property:* %s\n*👤 Guest:* %s", orNA(item.PropertyName), orNA(item.GuestName))
	if res != nil {
		fmt.Fprintf(&b, "\n*📅 Stay:* %s", stayInfo(res))
	}
	fmt.Fprintf(&b, "\n*📝 Description:* %s\n*🏷️ Category:* %s", flattened(item.Item), orNA(item.Category))
	if res != nil && res.ConversationID != "" {
		fmt.Fprintf(&b, "\n<%s|View in Hospitable>", conversationURL(res))
	}
	return b.String()
}

func stayInfo(res *hospitable.Reservation) string {
	return formatWithOffset(res.CheckIn) + " ---> " + formatWithOffset(res.CheckOut)
}

// formatWithOffset renders an instant in its own fixed offset, with the
// offset spelled out; the time is never converted to another zone.
func formatWithOffset(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006 3:04 PM") + t.Format(" (UTC-07:00)")
}

func conversationURL(res *hospitable.Reservation) string {
	if res == nil || res.ConversationID == "" {
		return "N/A"
	}
	return "https://my.hospitable.com/inbox/thread/" + res.ConversationID
}

func mentionList(userIDs []string) string {
	tags := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		tags = append(tags, "<@"+id+">")
	}
	return strings.Join(tags, " ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// flattened collapses multi-line descriptions onto one line so they fit a
// single mrkdwn field.
func flattened(s string) string {
	return strings.ReplaceAll(orNA(s), "\n", " ")
}
