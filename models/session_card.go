package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionCard is one draw inside a session
// Table: session_cards
// Index is the number of cards the session held before this draw
// LabelSnapshot is copied from the template so later catalog edits do not rewrite history
// CardTemplateID is null when the catalog had no active card of the drawn type
type SessionCard struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_session_cards_uuid" json:"uuid"`
	SessionID      uint      `gorm:"not null;uniqueIndex:uk_session_cards_session_index" json:"session_id"`
	Index          int       `gorm:"column:index;not null;uniqueIndex:uk_session_cards_session_index" json:"index"`
	Type           CardType  `gorm:"type:varchar(8);not null" json:"type"`
	LabelSnapshot  string    `gorm:"type:text;not null" json:"label_snapshot"`
	CardTemplateID *uint     `gorm:"index:idx_session_cards_card_template_id" json:"card_template_id,omitempty"`
	RandomValue    float64   `gorm:"not null" json:"random_value"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (SessionCard) TableName() string { return "session_cards" }

// SessionCardFilter represents filter criteria for session card queries
type SessionCardFilter struct {
	ID             *uint
	SessionID      *uint
	Index          *int
	Type           *CardType
	CardTemplateID *uint
}
