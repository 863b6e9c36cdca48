package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/hostbuddy-notifier/internal/hospitable"
	"github.com/example/hostbuddy-notifier/internal/slack"
)

// scheduleCheckoutReminder asks Slack to deliver the "turn off guest
// reviewing" reminder 6-8 hours after checkout. Targets in the past fall back
// to an immediate post; targets beyond the scheduling horizon fall back to a
// limit-exceeded post tagging on-call. Only Airbnb stays get a reminder at
// all.
func (r *Router) scheduleCheckoutReminder(ctx context.Context, item ActionItem, res *hospitable.Reservation) error {
	if !strings.EqualFold(res.Platform, r.Routing.Platform) {
		log.Printf("router: platform is %q, not %s; skipping scheduled reminder", orNA(res.Platform), r.Routing.Platform)
		return nil
	}

	offset := r.Jitter()
	target := res.CheckOut.Add(offset)
	now := r.Now()
	log.Printf("router: reminder target %s after checkout for item %s", offset, item.ID)

	if !target.After(now) {
		log.Printf("router: checkout already passed, sending reminder immediately")
		return r.postImmediateReminder(ctx, item, res)
	}

	horizon := time.Duration(r.Routing.HorizonDays) * 24 * time.Hour
	if target.After(now.Add(horizon)) {
		log.Printf("router: checkout beyond %d-day scheduling horizon, notifying on-call", r.Routing.HorizonDays)
		return r.postLimitExceeded(ctx, item, res)
	}

	msg := slack.Message{
		Channel: r.Routing.OpsChannel,
		Text:    "💥 Turn off reviewing the guest",
		Blocks:  []slack.Block{slack.Section(reminderBody("💥 *Turn off reviewing the guest*", "", item, res))},
	}
	err := r.Slack.ScheduleMessage(ctx, msg, target)
	if err == nil {
		return nil
	}

	var apiErr *slack.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case slack.ErrTimeInPast, slack.ErrTimeTooFar, slack.ErrRateLimited:
			// No retry budget here; degrade to an immediate post.
			log.Printf("router: schedule rejected (%s), sending immediately", apiErr.Code)
			return r.postImmediateReminder(ctx, item, res)
		}
	}
	return fmt.Errorf("schedule checkout reminder: %w", err)
}

func (r *Router) postImmediateReminder(ctx context.Context, item ActionItem, res *hospitable.Reservation) error {
	md := reminderBody("💥 *Turn off reviewing the guest NOW*", "⚠️ Checkout has already passed or is imminent.", item, res)
	msg := slack.Message{
		Channel: r.Routing.OpsChannel,
		Text:    "💥 Turn off reviewing the guest (IMMEDIATE)",
		Blocks:  []slack.Block{slack.Section(md)},
	}
	if _, err := r.Slack.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post immediate reminder: %w", err)
	}
	return nil
}

func (r *Router) postLimitExceeded(ctx context.Context, item ActionItem, res *hospitable.Reservation) error {
	header := fmt.Sprintf("⚠️ <@%s> *Cannot schedule reminder - checkout is more than %d days away*",
		r.Routing.OnCallMention, r.Routing.HorizonDays)
	md := reminderBody(header, "💥 Remember to turn off reviewing this guest closer to checkout.", item, res)
	msg := slack.Message{
		Channel: r.Routing.OpsChannel,
		Text:    "⚠️ Cannot schedule reminder - checkout too far in future",
		Blocks:  []slack.Block{slack.Section(md)},
	}
	if _, err := r.Slack.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post limit-exceeded reminder: %w", err)
	}
	return nil
}

// reminderBody renders the shared reminder text; all three variants differ
// only in their header and note lines.
func reminderBody(header, note string, item ActionItem, res *hospitable.Reservation) string {
	body := header + "\n\n"
	if note != "" {
		body += note + "\n\n"
	}
	body += "The automation that gives review to the guest. Turn that off. Not the message.\n\n"
	body += fmt.Sprintf("*🏠 Property:* %s\n*👤 Guest:* %s\n*📅 Stay:* %s\n\n<%s|View in Hospitable>",
		orNA(item.PropertyName), orNA(item.GuestName), stayInfo(res), conversationURL(res))
	return body
}
