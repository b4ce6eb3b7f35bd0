package tests

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/amirphl/Omikuji/app/dto"
	businessflow "github.com/amirphl/Omikuji/business_flow"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/seed"
	testingutil "github.com/amirphl/Omikuji/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flows struct {
	sessions businessflow.SessionFlow
	draws    businessflow.DrawFlow
	finalize businessflow.FinalizeFlow
	daily    businessflow.DailyOutcomeFlow
	stats    businessflow.StatsFlow
	catalog  businessflow.CardCatalog
	tmplRepo repository.CardTemplateRepository
}

func newFlows(testDB *testingutil.TestDB) *flows {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	game := config.GameConfig{MaxDraws: 5, DailyReplayPolicy: config.ReplayPolicyCasual, StatsTimezone: "UTC", HistoryExportLimit: 100}

	templateRepo := repository.NewCardTemplateRepository(testDB.DB)
	sessionRepo := repository.NewSessionRepository(testDB.DB)
	cardRepo := repository.NewSessionCardRepository(testDB.DB)
	dailyRepo := repository.NewDailyOutcomeRepository(testDB.DB)
	tx := repository.NewTransactor(testDB.DB)
	clock := businessflow.NewSystemClock()
	rng := businessflow.NewRandomSource()
	catalog := businessflow.NewCardCatalog(templateRepo, nil, "test:", 0, log)

	return &flows{
		sessions: businessflow.NewSessionFlow(sessionRepo, cardRepo, game, clock, log),
		draws:    businessflow.NewDrawFlow(sessionRepo, cardRepo, catalog, tx, rng, clock, game, log),
		finalize: businessflow.NewFinalizeFlow(sessionRepo, cardRepo, dailyRepo, tx, rng, clock, game, log),
		daily:    businessflow.NewDailyOutcomeFlow(sessionRepo, dailyRepo, clock, log),
		stats:    businessflow.NewStatsFlow(sessionRepo, dailyRepo, templateRepo, clock, game, log),
		catalog:  catalog,
		tmplRepo: templateRepo,
	}
}

func (f *flows) readySession(t *testing.T, ctx context.Context, owner string) string {
	t.Helper()
	created, err := f.sessions.CreateSession(ctx, &dto.CreateSessionRequest{OwnerKey: owner}, nil)
	require.NoError(t, err)
	for range 5 {
		_, err := f.draws.DrawCard(ctx, &dto.DrawCardRequest{SessionID: created.Session.ID, OwnerKey: owner}, nil)
		require.NoError(t, err)
	}
	return created.Session.ID
}

func TestLifecycle_SeededCatalog(t *testing.T) {
	requireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		f := newFlows(testDB)

		catalog, err := seed.Default()
		require.NoError(t, err)
		_, err = seed.NewSeeder(f.tmplRepo, f.catalog, slog.New(slog.NewTextHandler(io.Discard, nil))).Run(ctx, catalog)
		require.NoError(t, err)

		owner := testingutil.RandomOwnerKey()
		sessionID := f.readySession(t, ctx, owner)

		got, err := f.sessions.GetSession(ctx, &dto.GetSessionRequest{SessionID: sessionID, OwnerKey: owner}, nil)
		require.NoError(t, err)
		require.Len(t, got.Cards, 5)
		assert.Equal(t, string(models.SessionStatusReady), got.Session.Status)
		for _, c := range got.Cards {
			assert.NotNil(t, c.CardTemplateID, "seeded catalog always yields a template")
		}

		_, err = f.draws.DrawCard(ctx, &dto.DrawCardRequest{SessionID: sessionID, OwnerKey: owner}, nil)
		assert.True(t, businessflow.IsDrawLimitReached(err))

		pick := 3
		first, err := f.finalize.FinalizeWithPick(ctx, &dto.FinalizeSessionRequest{SessionID: sessionID, OwnerKey: owner, PickIndex: &pick}, nil)
		require.NoError(t, err)
		assert.True(t, first.Official)
		assert.Equal(t, got.Cards[3].Label, first.Final.Label)

		_, err = f.finalize.FinalizeWithDailyCheck(ctx, &dto.FinalizeSessionRequest{SessionID: sessionID, OwnerKey: owner}, nil)
		assert.True(t, businessflow.IsSessionFinalized(err))

		second, err := f.finalize.FinalizeWithDailyCheck(ctx, &dto.FinalizeSessionRequest{SessionID: f.readySession(t, ctx, owner), OwnerKey: owner}, nil)
		require.NoError(t, err)
		assert.False(t, second.Official)

		today, err := f.daily.GetTodayOutcome(ctx, &dto.OwnerRequest{OwnerKey: owner}, nil)
		require.NoError(t, err)
		require.NotNil(t, today.DailyOutcome)
		assert.Equal(t, sessionID, today.DailyOutcome.SessionID)

		streaks, err := f.stats.GetStreaks(ctx, &dto.OwnerRequest{OwnerKey: owner}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), streaks.TotalDays)
		assert.Equal(t, 1, streaks.CurrentStreak)
		assert.True(t, streaks.HasPlayedToday)

		stats, err := f.stats.GetStatistics(ctx, &dto.OwnerRequest{OwnerKey: owner}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Overview.TotalSessions)
		assert.Equal(t, 1, stats.Overview.OfficialSessions)
		assert.NotEmpty(t, stats.TopTags)
		return nil
	})
	require.NoError(t, err)
}

func TestLifecycle_ConcurrentFinalizeKeepsOneOutcome(t *testing.T) {
	requireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		f := newFlows(testDB)
		owner := testingutil.RandomOwnerKey()

		const racers = 4
		ids := make([]string, racers)
		for i := range ids {
			ids[i] = f.readySession(t, ctx, owner)
		}

		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.finalize.FinalizeWithDailyCheck(ctx, &dto.FinalizeSessionRequest{SessionID: id, OwnerKey: owner}, nil)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				assert.True(t, businessflow.IsConflict(err), "unexpected error: %v", err)
			}
		}

		var outcomes int64
		require.NoError(t, testDB.DB.Model(&models.DailyOutcome{}).Where("owner_key = ?", owner).Count(&outcomes).Error)
		assert.Equal(t, int64(1), outcomes)

		var official int64
		require.NoError(t, testDB.DB.Model(&models.Session{}).Where("owner_key = ? AND is_official_daily", owner).Count(&official).Error)
		assert.Equal(t, int64(1), official)
		return nil
	})
	require.NoError(t, err)
}

func TestLifecycle_ConcurrentDrawsNeverExceedFive(t *testing.T) {
	requireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		f := newFlows(testDB)
		owner := testingutil.RandomOwnerKey()

		created, err := f.sessions.CreateSession(ctx, &dto.CreateSessionRequest{OwnerKey: owner}, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 12 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.draws.DrawCard(ctx, &dto.DrawCardRequest{SessionID: created.Session.ID, OwnerKey: owner}, nil)
				if err != nil {
					assert.True(t, businessflow.IsConflict(err) || businessflow.IsDrawLimitReached(err), "unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := f.sessions.GetSession(ctx, &dto.GetSessionRequest{SessionID: created.Session.ID, OwnerKey: owner}, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got.Cards), 5)
		for i, c := range got.Cards {
			assert.Equal(t, i, c.Index)
			assert.Nil(t, c.CardTemplateID, "empty catalog falls back to a built-in label")
		}
		return nil
	})
	require.NoError(t, err)
}
