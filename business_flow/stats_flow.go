package businessflow

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
)

// StatsFlow aggregates an owner's history into streaks and rollups
type StatsFlow interface {
	GetStreaks(ctx context.Context, req *dto.OwnerRequest, metadata *ClientMetadata) (*dto.StreaksResponse, error)
	GetStatistics(ctx context.Context, req *dto.OwnerRequest, metadata *ClientMetadata) (*dto.StatisticsResponse, error)
}

// StatsFlowImpl implements StatsFlow
type StatsFlowImpl struct {
	sessionRepo  repository.SessionRepository
	dailyRepo    repository.DailyOutcomeRepository
	templateRepo repository.CardTemplateRepository
	clock        Clock
	gameCfg      config.GameConfig
	logger       *slog.Logger
}

func NewStatsFlow(
	sessionRepo repository.SessionRepository,
	dailyRepo repository.DailyOutcomeRepository,
	templateRepo repository.CardTemplateRepository,
	clock Clock,
	gameCfg config.GameConfig,
	logger *slog.Logger,
) StatsFlow {
	return &StatsFlowImpl{
		sessionRepo:  sessionRepo,
		dailyRepo:    dailyRepo,
		templateRepo: templateRepo,
		clock:        clock,
		gameCfg:      gameCfg,
		logger:       logger,
	}
}

// streaks holds the day-run figures of a ledger
type streaks struct {
	current int
	longest int
}

// computeStreaks walks distinct UTC days sorted most recent first.
// The current streak starts at the most recent day and runs while each next day is exactly one day earlier.
func computeStreaks(dates []time.Time) streaks {
	if len(dates) == 0 {
		return streaks{}
	}

	var s streaks
	cursor := utils.StartOfUTCDay(dates[0])
	for _, d := range dates {
		if !utils.StartOfUTCDay(d).Equal(cursor) {
			break
		}
		s.current++
		cursor = utils.PreviousUTCDay(cursor)
	}

	run := 1
	s.longest = 1
	for i := 1; i < len(dates); i++ {
		if utils.StartOfUTCDay(dates[i]).Equal(utils.PreviousUTCDay(dates[i-1])) {
			run++
		} else {
			run = 1
		}
		if run > s.longest {
			s.longest = run
		}
	}
	return s
}

// GetStreaks returns total official days and the current and longest runs
func (f *StatsFlowImpl) GetStreaks(ctx context.Context, req *dto.OwnerRequest, metadata *ClientMetadata) (resp *dto.StreaksResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "GET_STREAKS_FAILED", "Failed to get streaks", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	total, err := f.dailyRepo.CountByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	dates, err := f.dailyRepo.ListDatesByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	s := computeStreaks(dates)
	resp = &dto.StreaksResponse{
		TotalDays:     total,
		CurrentStreak: s.current,
		LongestStreak: s.longest,
	}
	if len(dates) > 0 {
		resp.LastPlayDate = utils.ToPtr(dates[0].UTC().Format(time.DateOnly))
		resp.HasPlayedToday = utils.SameUTCDay(dates[0], f.clock.Now())
	}
	return resp, nil
}

// GetStatistics builds the overview, monthly and hourly rollups over finalized sessions
func (f *StatsFlowImpl) GetStatistics(ctx context.Context, req *dto.OwnerRequest, metadata *ClientMetadata) (resp *dto.StatisticsResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "GET_STATISTICS_FAILED", "Failed to get statistics", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	sessions, err := f.sessionRepo.ByFilter(ctx, finalizedSessionsFilter(ownerKey, nil), "finalized_at DESC", 0, 0)
	if err != nil {
		return nil, err
	}
	dates, err := f.dailyRepo.ListDatesByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	s := computeStreaks(dates)

	good, official := 0, 0
	for _, sess := range sessions {
		if sess.FinalType != nil && *sess.FinalType == models.CardTypeGood {
			good++
		}
		if sess.IsOfficialDaily {
			official++
		}
	}

	overview := dto.StatsOverview{
		TotalSessions:    len(sessions),
		OfficialSessions: official,
		CurrentStreak:    s.current,
		LongestStreak:    s.longest,
	}
	if len(sessions) > 0 {
		overview.GoodPercentage = percentage(good, len(sessions))
		overview.BadPercentage = percentage(len(sessions)-good, len(sessions))
	}

	recent := make([]dto.SessionHistoryItem, 0, utils.RecentSessionsLimit)
	for i := 0; i < len(sessions) && i < utils.RecentSessionsLimit; i++ {
		recent = append(recent, toHistoryItem(sessions[i]))
	}

	return &dto.StatisticsResponse{
		Overview:               overview,
		MonthlyData:            monthlyRollup(sessions, utils.StatsMonthsWindow),
		RecentSessions:         recent,
		TopHour:                topHour(sessions, f.gameCfg.StatsLocation()),
		AverageCardsPerSession: utils.MaxDrawsPerSession,
		TopTags:                f.topTags(ctx, ownerKey, metadata),
	}, nil
}

func percentage(part, total int) int {
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// monthlyRollup counts finalized sessions per UTC month, keeping the most recent months first
func monthlyRollup(sessions []*models.Session, months int) []dto.MonthlyStat {
	byMonth := make(map[string]*dto.MonthlyStat)
	for _, s := range sessions {
		if s.FinalizedAt == nil {
			continue
		}
		key := s.FinalizedAt.UTC().Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &dto.MonthlyStat{Month: key}
			byMonth[key] = m
		}
		if s.FinalType != nil && *s.FinalType == models.CardTypeGood {
			m.Good++
		} else {
			m.Bad++
		}
		m.Total++
	}

	out := make([]dto.MonthlyStat, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	if len(out) > months {
		out = out[:months]
	}
	return out
}

// topHour returns the most frequent finalize hour in loc; ties go to the earliest hour
func topHour(sessions []*models.Session, loc *time.Location) int {
	var counts [24]int
	seen := false
	for _, s := range sessions {
		if s.FinalizedAt == nil {
			continue
		}
		counts[s.FinalizedAt.In(loc).Hour()]++
		seen = true
	}
	if !seen {
		return utils.DefaultTopHour
	}

	best := 0
	for h := 1; h < 24; h++ {
		if counts[h] > counts[best] {
			best = h
		}
	}
	return best
}

// topTags never fails the statistics call; a query error yields an empty list
func (f *StatsFlowImpl) topTags(ctx context.Context, ownerKey string, metadata *ClientMetadata) []dto.TagStat {
	rows, err := f.templateRepo.TopTagsByOwner(ctx, ownerKey, utils.TopTagsLimit)
	if err != nil {
		if f.logger != nil {
			attrs := append([]any{slog.Any("error", err)}, metadata.logAttrs()...)
			f.logger.WarnContext(ctx, "top tags query failed", attrs...)
		}
		return []dto.TagStat{}
	}

	out := make([]dto.TagStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.TagStat{Tag: r.Tag, Count: r.Count})
	}
	return out
}
