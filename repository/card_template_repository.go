package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Omikuji/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardTemplateRepositoryImpl implements CardTemplateRepository interface
type CardTemplateRepositoryImpl struct {
	*BaseRepository[models.CardTemplate, models.CardTemplateFilter]
}

// NewCardTemplateRepository creates a new card template repository
func NewCardTemplateRepository(db *gorm.DB) CardTemplateRepository {
	return &CardTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CardTemplate, models.CardTemplateFilter](db),
	}
}

// ListActiveByType returns active templates of one outcome type in id order
func (r *CardTemplateRepositoryImpl) ListActiveByType(ctx context.Context, cardType models.CardType) ([]*models.CardTemplate, error) {
	active := true
	rows, err := r.ByFilter(ctx, models.CardTemplateFilter{Type: &cardType, IsActive: &active}, "id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list active %s templates: %w", cardType, err)
	}
	return rows, nil
}

// Upsert inserts templates keyed by (label, locale), refreshing the mutable columns of existing rows
func (r *CardTemplateRepositoryImpl) Upsert(ctx context.Context, templates []*models.CardTemplate) (int64, error) {
	if len(templates) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.withWriteDB(ctx, func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "label"}, {Name: "locale"}},
			DoUpdates: clause.Assignments(map[string]any{
				"type":       clause.Expr{SQL: "EXCLUDED.type"},
				"intensity":  clause.Expr{SQL: "EXCLUDED.intensity"},
				"tags":       clause.Expr{SQL: "EXCLUDED.tags"},
				"weight":     clause.Expr{SQL: "EXCLUDED.weight"},
				"is_active":  clause.Expr{SQL: "EXCLUDED.is_active"},
				"updated_at": clause.Expr{SQL: "CURRENT_TIMESTAMP AT TIME ZONE 'UTC'"},
			}),
		}).CreateInBatches(templates, 100)
		if res.Error != nil {
			return fmt.Errorf("failed to upsert card templates: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// TopTagsByOwner counts the tags of the templates behind an owner's finalized picks
func (r *CardTemplateRepositoryImpl) TopTagsByOwner(ctx context.Context, ownerKey string, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []TagCount
	err := r.getDB(ctx).Raw(`
		SELECT t.tag AS tag, COUNT(*) AS count
		FROM sessions s
		JOIN session_cards sc ON sc.id = s.final_card_id
		JOIN card_templates ct ON ct.id = sc.card_template_id
		CROSS JOIN LATERAL unnest(ct.tags) AS t(tag)
		WHERE s.owner_key = ? AND s.finalized_at IS NOT NULL
		GROUP BY t.tag
		ORDER BY count DESC, t.tag ASC
		LIMIT ?
	`, ownerKey, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top tags: %w", err)
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *CardTemplateRepositoryImpl) applyFilter(query *gorm.DB, filter models.CardTemplateFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Locale != nil {
		query = query.Where("locale = ?", *filter.Locale)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves card templates based on filter criteria
func (r *CardTemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.CardTemplateFilter, orderBy string, limit, offset int) ([]*models.CardTemplate, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.CardTemplate{}), filter)

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

	var rows []*models.CardTemplate
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of card templates matching the filter
func (r *CardTemplateRepositoryImpl) Count(ctx context.Context, filter models.CardTemplateFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.CardTemplate{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any card template matching the filter exists
func (r *CardTemplateRepositoryImpl) Exists(ctx context.Context, filter models.CardTemplateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
