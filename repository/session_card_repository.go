package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Omikuji/models"
	"gorm.io/gorm"
)

// SessionCardRepositoryImpl implements SessionCardRepository interface
type SessionCardRepositoryImpl struct {
	*BaseRepository[models.SessionCard, models.SessionCardFilter]
}

// NewSessionCardRepository creates a new session card repository
func NewSessionCardRepository(db *gorm.DB) SessionCardRepository {
	return &SessionCardRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SessionCard, models.SessionCardFilter](db),
	}
}

// Save inserts a drawn card; a (session_id, index) collision becomes ErrSessionCardIndexTaken
func (r *SessionCardRepositoryImpl) Save(ctx context.Context, card *models.SessionCard) error {
	err := r.BaseRepository.Save(ctx, card)
	if isUniqueViolation(err) {
		return ErrSessionCardIndexTaken
	}
	return err
}

// CountBySession returns how many cards a session holds
func (r *SessionCardRepositoryImpl) CountBySession(ctx context.Context, sessionID uint) (int64, error) {
	c, err := r.Count(ctx, models.SessionCardFilter{SessionID: &sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count session cards: %w", err)
	}
	return c, nil
}

// ListBySession returns a session's cards in draw order
func (r *SessionCardRepositoryImpl) ListBySession(ctx context.Context, sessionID uint) ([]*models.SessionCard, error) {
	rows, err := r.ByFilter(ctx, models.SessionCardFilter{SessionID: &sessionID}, `"index" ASC`, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list session cards: %w", err)
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SessionCardRepositoryImpl) applyFilter(query *gorm.DB, filter models.SessionCardFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.Index != nil {
		query = query.Where(`"index" = ?`, *filter.Index)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.CardTemplateID != nil {
		query = query.Where("card_template_id = ?", *filter.CardTemplateID)
	}
	return query
}

// ByFilter retrieves session cards based on filter criteria
func (r *SessionCardRepositoryImpl) ByFilter(ctx context.Context, filter models.SessionCardFilter, orderBy string, limit, offset int) ([]*models.SessionCard, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.SessionCard{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.SessionCard
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of session cards matching the filter
func (r *SessionCardRepositoryImpl) Count(ctx context.Context, filter models.SessionCardFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.SessionCard{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any session card matching the filter exists
func (r *SessionCardRepositoryImpl) Exists(ctx context.Context, filter models.SessionCardFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
