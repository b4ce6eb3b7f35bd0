package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t time.Time, offset int) time.Time {
	return utils.StartOfUTCDay(t).AddDate(0, 0, offset)
}

func (h *harness) addOutcome(t *testing.T, owner string, date time.Time) {
	t.Helper()
	err := h.daily.Save(context.Background(), &models.DailyOutcome{
		UUID:       uuid.New(),
		OwnerKey:   owner,
		Date:       date,
		FinalType:  models.CardTypeGood,
		FinalLabel: "x",
	})
	require.NoError(t, err)
}

// addFinalized stores a finalized session directly
func (h *harness) addFinalized(t *testing.T, owner string, at time.Time, cardType models.CardType, official bool) {
	t.Helper()
	s := &models.Session{UUID: uuid.New(), OwnerKey: owner, Status: models.SessionStatusOpen, StartedAt: at.Add(-time.Minute)}
	require.NoError(t, h.sessions.Save(context.Background(), s))
	require.NoError(t, h.sessions.MarkFinalized(context.Background(), s.ID, models.SessionFinalization{
		FinalizedAt:     at,
		FinalCardID:     1,
		FinalType:       cardType,
		FinalLabel:      string(cardType),
		FinalPickIndex:  0,
		IsOfficialDaily: official,
	}))
}

func TestComputeStreaks(t *testing.T) {
	today := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		dates   []time.Time
		current int
		longest int
	}{
		{"empty", nil, 0, 0},
		{"single day", []time.Time{today}, 1, 1},
		{"gap after three", []time.Time{today, day(today, -1), day(today, -2), day(today, -5)}, 3, 3},
		{"older run is longer", []time.Time{today, day(today, -3), day(today, -4), day(today, -5), day(today, -6)}, 1, 4},
		{"run ending before today", []time.Time{day(today, -2), day(today, -3)}, 2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeStreaks(tc.dates)
			assert.Equal(t, tc.current, got.current)
			assert.Equal(t, tc.longest, got.longest)
		})
	}
}

func TestGetStreaks(t *testing.T) {
	h := newHarness(t, config.ReplayPolicyCasual)
	now := h.clock.now
	for _, offset := range []int{0, -1, -2, -5} {
		h.addOutcome(t, "bob", day(now, offset))
	}
	h.addOutcome(t, "someone-else", day(now, -3))

	resp, err := h.statsFlow.GetStreaks(context.Background(), &dto.OwnerRequest{OwnerKey: "bob"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, resp.TotalDays)
	assert.Equal(t, 3, resp.CurrentStreak)
	assert.Equal(t, 3, resp.LongestStreak)
	require.NotNil(t, resp.LastPlayDate)
	assert.Equal(t, "2026-03-14", *resp.LastPlayDate)
	assert.True(t, resp.HasPlayedToday)

	empty, err := h.statsFlow.GetStreaks(context.Background(), &dto.OwnerRequest{OwnerKey: "nobody"}, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalDays)
	assert.Nil(t, empty.LastPlayDate)
	assert.False(t, empty.HasPlayedToday)
}

func TestGetStatistics(t *testing.T) {
	h := newHarness(t, config.ReplayPolicyCasual)
	h.templates.tags = []repository.TagCount{{Tag: "amour", Count: 3}, {Tag: "travail", Count: 1}}

	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	h.addFinalized(t, "bob", base.Add(8*time.Hour), models.CardTypeGood, true)
	h.addFinalized(t, "bob", base.Add(20*time.Hour), models.CardTypeGood, false)
	h.addFinalized(t, "bob", base.AddDate(0, -1, 0).Add(8*time.Hour), models.CardTypeBad, true)
	h.addFinalized(t, "bob", base.AddDate(0, -2, 0).Add(20*time.Hour), models.CardTypeGood, true)
	h.addOutcome(t, "bob", base)

	resp, err := h.statsFlow.GetStatistics(context.Background(), &dto.OwnerRequest{OwnerKey: "bob"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, resp.Overview.TotalSessions)
	assert.Equal(t, 3, resp.Overview.OfficialSessions)
	assert.Equal(t, 75, resp.Overview.GoodPercentage)
	assert.Equal(t, 25, resp.Overview.BadPercentage)
	assert.Equal(t, 1, resp.Overview.CurrentStreak)

	require.Len(t, resp.MonthlyData, 3)
	assert.Equal(t, dto.MonthlyStat{Month: "2026-03", Good: 2, Bad: 0, Total: 2}, resp.MonthlyData[0])
	assert.Equal(t, "2026-02", resp.MonthlyData[1].Month)
	assert.Equal(t, 1, resp.MonthlyData[1].Bad)
	assert.Equal(t, "2026-01", resp.MonthlyData[2].Month)

	// two sessions at 08h and two at 20h: the earlier hour wins
	assert.Equal(t, 8, resp.TopHour)
	assert.Equal(t, 5, resp.AverageCardsPerSession)
	require.Len(t, resp.RecentSessions, 4)
	assert.True(t, *resp.RecentSessions[0].FinalizedAt > *resp.RecentSessions[1].FinalizedAt)
	assert.Equal(t, []dto.TagStat{{Tag: "amour", Count: 3}, {Tag: "travail", Count: 1}}, resp.TopTags)
}

func TestGetStatisticsDefaults(t *testing.T) {
	h := newHarness(t, config.ReplayPolicyCasual)
	h.templates.tagsErr = errBoom

	resp, err := h.statsFlow.GetStatistics(context.Background(), &dto.OwnerRequest{OwnerKey: "new"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, resp.TopHour)
	assert.Zero(t, resp.Overview.GoodPercentage)
	assert.Zero(t, resp.Overview.BadPercentage)
	assert.Empty(t, resp.MonthlyData)
	assert.NotNil(t, resp.TopTags)
	assert.Empty(t, resp.TopTags)
}

func TestMonthlyRollupKeepsSixMonths(t *testing.T) {
	var sessions []*models.Session
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	good := models.CardTypeGood
	for i := range 8 {
		at := base.AddDate(0, -i, 0)
		sessions = append(sessions, &models.Session{FinalizedAt: &at, FinalType: &good})
	}

	got := monthlyRollup(sessions, 6)
	require.Len(t, got, 6)
	assert.Equal(t, "2026-10", got[0].Month)
	assert.Equal(t, "2026-05", got[5].Month)
}

func TestTopHourUsesStatsTimezone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	at := time.Date(2026, 1, 10, 22, 15, 0, 0, time.UTC)
	sessions := []*models.Session{{FinalizedAt: &at}}

	assert.Equal(t, 22, topHour(sessions, time.UTC))
	assert.Equal(t, 23, topHour(sessions, paris))
}
