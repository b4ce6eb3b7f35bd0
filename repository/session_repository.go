package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Omikuji/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepositoryImpl implements SessionRepository interface
type SessionRepositoryImpl struct {
	*BaseRepository[models.Session, models.SessionFilter]
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &SessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Session, models.SessionFilter](db),
	}
}

// ByUUID retrieves a session by its public identifier
func (r *SessionRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var row models.Session
	if err := r.getDB(ctx).Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session by uuid: %w", err)
	}
	return &row, nil
}

// UpdateStatus moves an unfinalized session between OPEN and READY
func (r *SessionRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.SessionStatus) error {
	return r.withWriteDB(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Session{}).
			Where("id = ? AND finalized_at IS NULL", id).
			Update("status", status)
		if res.Error != nil {
			return fmt.Errorf("failed to update session status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSessionAlreadyFinalized
		}
		return nil
	})
}

// MarkFinalized writes the finalize columns once. The update only matches a session whose
// finalized_at is still null, so a second concurrent finalize gets ErrSessionAlreadyFinalized.
func (r *SessionRepositoryImpl) MarkFinalized(ctx context.Context, id uint, fin models.SessionFinalization) error {
	return r.withWriteDB(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Session{}).
			Where("id = ? AND finalized_at IS NULL", id).
			Updates(map[string]any{
				"status":            models.SessionStatusFinalized,
				"finalized_at":      fin.FinalizedAt,
				"final_card_id":     fin.FinalCardID,
				"final_type":        fin.FinalType,
				"final_label":       fin.FinalLabel,
				"final_pick_index":  fin.FinalPickIndex,
				"is_official_daily": fin.IsOfficialDaily,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to finalize session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSessionAlreadyFinalized
		}
		return nil
	})
}

// applyFilter applies filter criteria to a GORM query
func (r *SessionRepositoryImpl) applyFilter(query *gorm.DB, filter models.SessionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerKey != nil {
		query = query.Where("owner_key = ?", *filter.OwnerKey)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsFinalized != nil {
		if *filter.IsFinalized {
			query = query.Where("finalized_at IS NOT NULL")
		} else {
			query = query.Where("finalized_at IS NULL")
		}
	}
	if filter.IsOfficialDaily != nil {
		query = query.Where("is_official_daily = ?", *filter.IsOfficialDaily)
	}
	if filter.FinalizedAfter != nil {
		query = query.Where("finalized_at >= ?", *filter.FinalizedAfter)
	}
	if filter.FinalizedBefore != nil {
		query = query.Where("finalized_at < ?", *filter.FinalizedBefore)
	}
	return query
}

// ByFilter retrieves sessions based on filter criteria
func (r *SessionRepositoryImpl) ByFilter(ctx context.Context, filter models.SessionFilter, orderBy string, limit, offset int) ([]*models.Session, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Session{}), filter)

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

	var rows []*models.Session
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of sessions matching the filter
func (r *SessionRepositoryImpl) Count(ctx context.Context, filter models.SessionFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Session{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any session matching the filter exists
func (r *SessionRepositoryImpl) Exists(ctx context.Context, filter models.SessionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
