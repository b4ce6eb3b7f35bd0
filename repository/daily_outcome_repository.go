package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/utils"
	"gorm.io/gorm"
)

// DailyOutcomeRepositoryImpl implements DailyOutcomeRepository interface
type DailyOutcomeRepositoryImpl struct {
	*BaseRepository[models.DailyOutcome, models.DailyOutcomeFilter]
}

// NewDailyOutcomeRepository creates a new daily outcome repository
func NewDailyOutcomeRepository(db *gorm.DB) DailyOutcomeRepository {
	return &DailyOutcomeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DailyOutcome, models.DailyOutcomeFilter](db),
	}
}

// Save inserts a ledger row; the unique (owner_key, date) index turns a second official
// outcome for the same day into ErrDailyOutcomeExists.
func (r *DailyOutcomeRepositoryImpl) Save(ctx context.Context, outcome *models.DailyOutcome) error {
	outcome.Date = utils.StartOfUTCDay(outcome.Date)
	err := r.BaseRepository.Save(ctx, outcome)
	if isUniqueViolation(err) {
		return ErrDailyOutcomeExists
	}
	return err
}

// ByOwnerAndDate returns the ledger row of an owner's UTC day, or nil
func (r *DailyOutcomeRepositoryImpl) ByOwnerAndDate(ctx context.Context, ownerKey string, date time.Time) (*models.DailyOutcome, error) {
	day := utils.StartOfUTCDay(date)
	rows, err := r.ByFilter(ctx, models.DailyOutcomeFilter{OwnerKey: &ownerKey, Date: &day}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find daily outcome: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// BySessionID returns the ledger row a session produced, or nil for casual sessions
func (r *DailyOutcomeRepositoryImpl) BySessionID(ctx context.Context, sessionID uint) (*models.DailyOutcome, error) {
	rows, err := r.ByFilter(ctx, models.DailyOutcomeFilter{SessionID: &sessionID}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find daily outcome by session: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListDatesByOwner returns every ledger day of an owner, most recent first
func (r *DailyOutcomeRepositoryImpl) ListDatesByOwner(ctx context.Context, ownerKey string) ([]time.Time, error) {
	var dates []time.Time
	err := r.getDB(ctx).Model(&models.DailyOutcome{}).
		Where("owner_key = ?", ownerKey).
		Order("date DESC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list daily outcome dates: %w", err)
	}
	for i := range dates {
		dates[i] = utils.StartOfUTCDay(dates[i])
	}
	return dates, nil
}

// CountByOwner returns how many official days an owner has
func (r *DailyOutcomeRepositoryImpl) CountByOwner(ctx context.Context, ownerKey string) (int64, error) {
	return r.Count(ctx, models.DailyOutcomeFilter{OwnerKey: &ownerKey})
}

// applyFilter applies filter criteria to a GORM query
func (r *DailyOutcomeRepositoryImpl) applyFilter(query *gorm.DB, filter models.DailyOutcomeFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.OwnerKey != nil {
		query = query.Where("owner_key = ?", *filter.OwnerKey)
	}
	if filter.Date != nil {
		query = query.Where("date = ?", utils.StartOfUTCDay(*filter.Date).Format(time.DateOnly))
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", utils.StartOfUTCDay(*filter.DateFrom).Format(time.DateOnly))
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", utils.StartOfUTCDay(*filter.DateTo).Format(time.DateOnly))
	}
	return query
}

// ByFilter retrieves daily outcomes based on filter criteria
func (r *DailyOutcomeRepositoryImpl) ByFilter(ctx context.Context, filter models.DailyOutcomeFilter, orderBy string, limit, offset int) ([]*models.DailyOutcome, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.DailyOutcome{}), filter)

	if orderBy == "" {
		orderBy = "date DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.DailyOutcome
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of daily outcomes matching the filter
func (r *DailyOutcomeRepositoryImpl) Count(ctx context.Context, filter models.DailyOutcomeFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.DailyOutcome{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any daily outcome matching the filter exists
func (r *DailyOutcomeRepositoryImpl) Exists(ctx context.Context, filter models.DailyOutcomeFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
