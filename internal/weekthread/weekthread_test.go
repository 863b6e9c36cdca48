package weekthread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hostbuddy-notifier/internal/slack"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestWeekLabel(t *testing.T) {
	loc := losAngeles(t)

	tests := []struct {
		name    string
		checkIn time.Time
		want    string
	}{
		{
			name:    "sunday rolls back to saturday",
			checkIn: time.Date(2025, time.November, 16, 14, 0, 0, 0, loc),
			want:    "Week_Sat_15th_Nov_2025",
		},
		{
			name:    "saturday keeps its own date",
			checkIn: time.Date(2025, time.November, 1, 12, 0, 0, 0, loc),
			want:    "Week_Sat_1st_Nov_2025",
		},
		{
			name:    "friday rolls back almost a week",
			checkIn: time.Date(2025, time.November, 14, 9, 0, 0, 0, loc),
			want:    "Week_Sat_8th_Nov_2025",
		},
		{
			// 01:00 UTC on Saturday is still Friday evening in LA.
			name:    "utc saturday that is la friday",
			checkIn: time.Date(2025, time.November, 15, 1, 0, 0, 0, time.UTC),
			want:    "Week_Sat_8th_Nov_2025",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WeekLabel(tc.checkIn, loc)
			assert.Equal(t, tc.want, got)
			// Re-derivation from the same instant is stable.
			assert.Equal(t, got, WeekLabel(tc.checkIn, loc))
		})
	}
}

func TestWeekLabelSaturdayNeverAfterLocalDate(t *testing.T) {
	loc := losAngeles(t)

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 400; day++ {
		checkIn := start.AddDate(0, 0, day).Add(7 * time.Hour)
		label := WeekLabel(checkIn, loc)

		local := checkIn.In(loc)
		y, m, d := local.Date()
		localDate := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
		back := (int(localDate.Weekday()) + 1) % 7
		sat := localDate.AddDate(0, 0, -back)

		assert.False(t, sat.After(localDate), "label %s: saturday after check-in date", label)
		assert.LessOrEqual(t, localDate.Sub(sat), 6*24*time.Hour, "label %s: saturday more than 6 days back", label)
	}
}

func TestOrdinalSuffix(t *testing.T) {
	tests := []struct {
		day  int
		want string
	}{
		{1, "st"}, {2, "nd"}, {3, "rd"}, {4, "th"},
		{11, "th"}, {12, "th"}, {13, "th"}, {20, "th"},
		{21, "st"}, {22, "nd"}, {23, "rd"}, {24, "th"}, {31, "st"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ordinalSuffix(tc.day), "day %d", tc.day)
	}
}

type fakeChannel struct {
	matches   []slack.SearchMatch
	searchErr error
	queries   []string
	posted    []slack.Message
	postTS    string
	postErr   error
}

func (f *fakeChannel) SearchMessages(_ context.Context, query string, _ int) ([]slack.SearchMatch, error) {
	f.queries = append(f.queries, query)
	return f.matches, f.searchErr
}

func (f *fakeChannel) PostMessage(_ context.Context, msg slack.Message) (string, error) {
	f.posted = append(f.posted, msg)
	return f.postTS, f.postErr
}

func TestFindOrCreatePrefersParentOverReply(t *testing.T) {
	ch := &fakeChannel{
		matches: []slack.SearchMatch{
			{TS: "200.2", ThreadTS: "100.1"}, // reply quoting the label
			{TS: "100.1", ThreadTS: "100.1"}, // the thread root
		},
	}
	l := NewLocator(ch, "C07U1GHS1R9", "a044-eileena-aria", losAngeles(t))

	ts, err := l.FindOrCreate(context.Background(), time.Date(2025, time.November, 16, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "100.1", ts)
	assert.Empty(t, ch.posted, "no thread should be created when a parent exists")
}

func TestFindOrCreateCreatesWhenNoMatch(t *testing.T) {
	ch := &fakeChannel{postTS: "300.3"}
	l := NewLocator(ch, "C07U1GHS1R9", "a044-eileena-aria", losAngeles(t))

	checkIn := time.Date(2025, time.November, 16, 14, 0, 0, 0, losAngeles(t))
	ts, err := l.FindOrCreate(context.Background(), checkIn)
	require.NoError(t, err)
	assert.Equal(t, "300.3", ts)

	require.Len(t, ch.posted, 1)
	assert.Equal(t, "C07U1GHS1R9", ch.posted[0].Channel)
	assert.Contains(t, ch.posted[0].Text, "Week_Sat_15th_Nov_2025")

	require.Len(t, ch.queries, 1)
	assert.Contains(t, ch.queries[0], `in:#a044-eileena-aria`)
	assert.Contains(t, ch.queries[0], `"Week_Sat_15th_Nov_2025"`)
}

func TestFindOrCreateIgnoresReplyOnlyMatches(t *testing.T) {
	ch := &fakeChannel{
		matches: []slack.SearchMatch{{TS: "200.2", ThreadTS: "100.1"}},
		postTS:  "400.4",
	}
	l := NewLocator(ch, "C", "chan", losAngeles(t))

	ts, err := l.FindOrCreate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "400.4", ts)
	assert.Len(t, ch.posted, 1)
}

func TestFindOrCreateSearchError(t *testing.T) {
	ch := &fakeChannel{searchErr: errors.New("search_not_allowed")}
	l := NewLocator(ch, "C", "chan", losAngeles(t))

	_, err := l.FindOrCreate(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Empty(t, ch.posted, "no create attempt after a failed search")
}
