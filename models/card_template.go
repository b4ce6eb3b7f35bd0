package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CardTemplate is a catalog entry a draw can land on
// Table: card_templates
// Read-only to the game; rows are written by the seeder
// Weight defaults to 1 and must be positive to influence selection
type CardTemplate struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_card_templates_uuid" json:"uuid"`
	Type      CardType       `gorm:"type:varchar(8);not null;index:idx_card_templates_type_active" json:"type"`
	Label     string         `gorm:"type:text;not null;uniqueIndex:uk_card_templates_label_locale" json:"label"`
	Intensity int            `gorm:"not null;default:1" json:"intensity"`
	Tags      pq.StringArray `gorm:"type:text[];not null;default:'{}';index:idx_card_templates_tags_gin,using:gin" json:"tags"`
	Locale    string         `gorm:"size:16;not null;default:'fr-FR';uniqueIndex:uk_card_templates_label_locale" json:"locale"`
	Weight    float64        `gorm:"not null;default:1" json:"weight"`
	IsActive  *bool          `gorm:"not null;default:true;index:idx_card_templates_type_active" json:"is_active"`
	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CardTemplate) TableName() string { return "card_templates" }

// CardTemplateFilter represents filter criteria for card template queries
type CardTemplateFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Type     *CardType
	Locale   *string
	IsActive *bool
}
