// Package router decides, per incoming action item, which Slack
// notifications fire. Rules are independent predicates: a single item may
// trigger several dispatches, and the default alert always fires.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/example/hostbuddy-notifier/internal/config"
	"github.com/example/hostbuddy-notifier/internal/hospitable"
	"github.com/example/hostbuddy-notifier/internal/slack"
)

// ActionItem is one unit of work surfaced by the upstream property-management
// webhook. Only the fields below are read; anything else in the payload is
// ignored.
type ActionItem struct {
	ID                      string `json:"id"`
	Item                    string `json:"item"`
	Category                string `json:"category"`
	PropertyName            string `json:"property_name"`
	GuestName               string `json:"guest_name"`
	ReservationID           string `json:"reservation_id"`
	HospitableReservationID string `json:"hospitable_reservation_id"`
}

// ReservationLookup resolves stay metadata. A nil result means the lookup
// failed or the reservation is unknown; that is never an error.
type ReservationLookup interface {
	Reservation(ctx context.Context, id string) *hospitable.Reservation
}

// ChannelClient is the slice of the Slack client the router dispatches
// through.
type ChannelClient interface {
	PostMessage(ctx context.Context, msg slack.Message) (string, error)
	ScheduleMessage(ctx context.Context, msg slack.Message, postAt time.Time) error
}

// ThreadLocator finds or creates the weekly thread for a check-in instant.
type ThreadLocator interface {
	FindOrCreate(ctx context.Context, checkIn time.Time) (string, error)
}

type Router struct {
	Lookup  ReservationLookup
	Slack   ChannelClient
	Threads ThreadLocator
	Routing config.Routing

	Pacing          time.Duration
	SentimentPacing time.Duration

	// Injection points so tests can pin time, jitter, and pacing.
	Now    func() time.Time
	Jitter func() time.Duration
	Sleep  func(time.Duration)
}

func New(routing config.Routing, lookup ReservationLookup, channel ChannelClient, threads ThreadLocator) *Router {
	return &Router{
		Lookup:          lookup,
		Slack:           channel,
		Threads:         threads,
		Routing:         routing,
		Pacing:          time.Duration(routing.PacingMillis) * time.Millisecond,
		SentimentPacing: time.Duration(routing.SentimentPacingMillis) * time.Millisecond,
		Now:             time.Now,
		Jitter: func() time.Duration {
			span := routing.JitterMaxMinutes - routing.JitterMinMinutes
			return time.Duration(routing.JitterMinMinutes+rand.Intn(span+1)) * time.Minute
		},
		Sleep: time.Sleep,
	}
}

// Process routes a batch of action items in order. Errors are logged per
// item and never abort the batch; the pacing pause runs between items, not
// after the last.
func (r *Router) Process(ctx context.Context, items []ActionItem) {
	for i, item := range items {
		log.Printf("router: processing action item %s (category=%q property=%q)", item.ID, item.Category, item.PropertyName)
		if err := r.processItem(ctx, item); err != nil {
			log.Printf("router: action item %s: %v", item.ID, err)
		}
		if i < len(items)-1 {
			r.Sleep(r.Pacing)
		}
	}
}

// ProcessSentiment is the filtered ingress used by the /a008 route: only
// negative-sentiment items for the configured property are acted on, and the
// only dispatch considered is the checkout reminder (or its failsafe).
func (r *Router) ProcessSentiment(ctx context.Context, items []ActionItem) {
	for i, item := range items {
		if !strings.Contains(strings.ToUpper(item.PropertyName), r.Routing.SentimentPropertyCode) {
			continue
		}
		if !strings.Contains(strings.ToLower(item.Item), "sentiment turned negative") {
			continue
		}

		res := r.lookup(ctx, item)
		if err := r.dispatchSentiment(ctx, item, res); err != nil {
			log.Printf("router: sentiment item %s: %v", item.ID, err)
		}
		if i < len(items)-1 {
			r.Sleep(r.SentimentPacing)
		}
	}
}

func (r *Router) lookup(ctx context.Context, item ActionItem) *hospitable.Reservation {
	if item.HospitableReservationID == "" {
		return nil
	}
	return r.Lookup.Reservation(ctx, item.HospitableReservationID)
}

type rule struct {
	name     string
	matches  func(item ActionItem, res *hospitable.Reservation) bool
	dispatch func(ctx context.Context, item ActionItem, res *hospitable.Reservation) error
}

// rules returns the ordered rule set. Evaluation never short-circuits: every
// matching rule fires, so the default alert cannot block the specialized
// ones and vice versa.
func (r *Router) rules() []rule {
	return []rule{
		{
			name: "arrival-departure",
			matches: func(item ActionItem, _ *hospitable.Reservation) bool {
				return item.Category == "ARRIVAL-DEPARTURE" &&
					strings.Contains(item.PropertyName, r.Routing.ReviewPropertyCode)
			},
			dispatch: r.dispatchArrivalDeparture,
		},
		{
			name: "address-request",
			matches: func(item ActionItem, _ *hospitable.Reservation) bool {
				return item.Category == "ADDRESS-REQUEST" &&
					strings.Contains(strings.ToLower(item.PropertyName), strings.ToLower(r.Routing.ReviewPropertyCode))
			},
			dispatch: r.dispatchAddressRequest,
		},
		{
			name: "negative-sentiment",
			matches: func(item ActionItem, _ *hospitable.Reservation) bool {
				return strings.Contains(strings.ToLower(item.Item), "sentiment turned negative")
			},
			dispatch: r.dispatchSentiment,
		},
		{
			name:     "default",
			matches:  func(ActionItem, *hospitable.Reservation) bool { return true },
			dispatch: r.dispatchDefault,
		},
	}
}

func (r *Router) processItem(ctx context.Context, item ActionItem) error {
	res := r.lookup(ctx, item)

	var errs []error
	for _, ru := range r.rules() {
		if !ru.matches(item, res) {
			continue
		}
		if err := ru.dispatch(ctx, item, res); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ru.name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) dispatchSentiment(ctx context.Context, item ActionItem, res *hospitable.Reservation) error {
	if res != nil && !res.CheckOut.IsZero() {
		return r.scheduleCheckoutReminder(ctx, item, res)
	}
	return r.postSentimentFailsafe(ctx, item)
}
