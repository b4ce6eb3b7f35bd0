package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyOutcome is the official result of an owner's UTC day
// Table: daily_outcomes
// Unique by (owner_key, date); the index is the race guard for concurrent finalizes
// SessionID references the producing session without owning it
type DailyOutcome struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_daily_outcomes_uuid" json:"uuid"`
	OwnerKey    string    `gorm:"type:text;not null;uniqueIndex:uk_daily_outcomes_owner_date" json:"owner_key"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:uk_daily_outcomes_owner_date" json:"date"`
	SessionID   uint      `gorm:"not null;index:idx_daily_outcomes_session_id" json:"session_id"`
	FinalCardID uint      `gorm:"not null" json:"final_card_id"`
	FinalType   CardType  `gorm:"type:varchar(8);not null" json:"final_type"`
	FinalLabel  string    `gorm:"type:text;not null" json:"final_label"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (DailyOutcome) TableName() string { return "daily_outcomes" }

// DailyOutcomeFilter represents filter criteria for daily outcome queries
type DailyOutcomeFilter struct {
	ID        *uint
	OwnerKey  *string
	Date      *time.Time
	SessionID *uint
	DateFrom  *time.Time
	DateTo    *time.Time
}
