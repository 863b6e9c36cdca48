// Package weekthread buckets check-in dates into Saturday-anchored weekly
// labels and finds or creates the matching discussion thread in the review
// channel. Slack's own message history is the only record of which threads
// exist; identity is re-derived by search on every call.
package weekthread

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/hostbuddy-notifier/internal/slack"
)

// WeekLabel renders the canonical week bucket for a check-in instant, e.g.
// Week_Sat_15th_Nov_2025. The instant is read as a calendar date in loc, then
// anchored to the most recent Saturday on or before that date.
func WeekLabel(checkIn time.Time, loc *time.Location) string {
	local := checkIn.In(loc)
	y, m, d := local.Date()
	// Noon UTC for the date arithmetic; midnight can be skipped by DST.
	day := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	back := (int(day.Weekday()) + 1) % 7 // days since last Saturday; 0 if Saturday
	sat := day.AddDate(0, 0, -back)
	return fmt.Sprintf("Week_Sat_%d%s_%s_%d", sat.Day(), ordinalSuffix(sat.Day()), sat.Format("Jan"), sat.Year())
}

func ordinalSuffix(day int) string {
	if day > 3 && day < 21 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// Channel is the slice of the Slack client the locator needs.
type Channel interface {
	SearchMessages(ctx context.Context, query string, count int) ([]slack.SearchMatch, error)
	PostMessage(ctx context.Context, msg slack.Message) (string, error)
}

// Locator resolves a check-in instant to the timestamp of that week's thread
// root, creating the header message when no thread exists yet. The
// search-then-create span is serialized per label so concurrent arrivals in
// the same week cannot create duplicate threads.
type Locator struct {
	Client      Channel
	ChannelID   string
	ChannelName string
	Loc         *time.Location

	mu     sync.Mutex
	labels map[string]*sync.Mutex
}

func NewLocator(client Channel, channelID, channelName string, loc *time.Location) *Locator {
	return &Locator{
		Client:      client,
		ChannelID:   channelID,
		ChannelName: channelName,
		Loc:         loc,
		labels:      make(map[string]*sync.Mutex),
	}
}

func (l *Locator) labelMutex(label string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.labels == nil {
		l.labels = make(map[string]*sync.Mutex)
	}
	mu, ok := l.labels[label]
	if !ok {
		mu = &sync.Mutex{}
		l.labels[label] = mu
	}
	return mu
}

// FindOrCreate returns the thread timestamp for the week containing checkIn.
// Existing parent messages win; a reply that merely quotes the label is never
// treated as the thread root. With no match, a new header message is posted
// and its timestamp returned.
func (l *Locator) FindOrCreate(ctx context.Context, checkIn time.Time) (string, error) {
	label := WeekLabel(checkIn, l.Loc)

	mu := l.labelMutex(label)
	mu.Lock()
	defer mu.Unlock()

	query := fmt.Sprintf("in:#%s %q", l.ChannelName, label)
	matches, err := l.Client.SearchMessages(ctx, query, 20)
	if err != nil {
		return "", fmt.Errorf("search week thread: %w", err)
	}
	for _, m := range matches {
		if m.IsParent() {
			return m.TS, nil
		}
	}

	log.Printf("weekthread: creating new thread for %s", label)
	ts, err := l.Client.PostMessage(ctx, slack.Message{
		Channel: l.ChannelID,
		Text:    "📅 " + label,
		Blocks:  []slack.Block{slack.Header("📅 " + label)},
	})
	if err != nil {
		return "", fmt.Errorf("create week thread: %w", err)
	}
	return ts, nil
}
