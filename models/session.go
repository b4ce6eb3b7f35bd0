package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a draw session
type SessionStatus string

const (
	// SessionStatusOpen means fewer than five cards have been drawn
	SessionStatusOpen SessionStatus = "OPEN"
	// SessionStatusReady means exactly five cards are drawn and the session awaits finalize
	SessionStatusReady SessionStatus = "READY"
	// SessionStatusFinalized is terminal
	SessionStatusFinalized SessionStatus = "FINALIZED"
)

// Session is one play-through: up to five draws followed by a single finalize
// Table: sessions
// finalized_at moves from null to a timestamp exactly once and never back
// final_* columns are all null until finalize and all set afterwards
type Session struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_sessions_uuid" json:"uuid"`
	OwnerKey        string        `gorm:"type:text;not null;index:idx_sessions_owner_finalized" json:"owner_key"`
	Seed            string        `gorm:"size:64;not null" json:"seed"`
	Status          SessionStatus `gorm:"type:varchar(16);not null;default:'OPEN'" json:"status"`
	StartedAt       time.Time     `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"started_at"`
	FinalizedAt     *time.Time    `gorm:"index:idx_sessions_owner_finalized" json:"finalized_at,omitempty"`
	FinalCardID     *uint         `json:"final_card_id,omitempty"`
	FinalType       *CardType     `gorm:"type:varchar(8)" json:"final_type,omitempty"`
	FinalLabel      *string       `gorm:"type:text" json:"final_label,omitempty"`
	FinalPickIndex  *int          `json:"final_pick_index,omitempty"`
	IsOfficialDaily bool          `gorm:"not null;default:false" json:"is_official_daily"`

	Cards []SessionCard `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"cards,omitempty"`
}

func (Session) TableName() string { return "sessions" }

// IsFinalized reports whether the session reached its terminal state
func (s *Session) IsFinalized() bool {
	return s.Status == SessionStatusFinalized || s.FinalizedAt != nil
}

// StatusForCardCount derives the pre-finalize status from the number of drawn cards
func StatusForCardCount(count, maxDraws int) SessionStatus {
	if count >= maxDraws {
		return SessionStatusReady
	}
	return SessionStatusOpen
}

// SessionFilter represents filter criteria for session queries
type SessionFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	OwnerKey        *string
	Status          *SessionStatus
	IsFinalized     *bool
	IsOfficialDaily *bool
	FinalizedAfter  *time.Time
	FinalizedBefore *time.Time
}

// SessionFinalization carries the columns written by a finalize
type SessionFinalization struct {
	FinalizedAt     time.Time
	FinalCardID     uint
	FinalType       CardType
	FinalLabel      string
	FinalPickIndex  int
	IsOfficialDaily bool
}
