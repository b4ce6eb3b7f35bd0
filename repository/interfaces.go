// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Omikuji/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Transactor runs fn in a transaction carried by the context passed to fn
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// TagCount is one row of a tag frequency aggregate
type TagCount struct {
	Tag   string `gorm:"column:tag"`
	Count int64  `gorm:"column:count"`
}

// CardTemplateRepository defines operations for the card catalog
type CardTemplateRepository interface {
	Repository[models.CardTemplate, models.CardTemplateFilter]
	ListActiveByType(ctx context.Context, cardType models.CardType) ([]*models.CardTemplate, error)
	Upsert(ctx context.Context, templates []*models.CardTemplate) (int64, error)
	TopTagsByOwner(ctx context.Context, ownerKey string, limit int) ([]TagCount, error)
}

// SessionRepository defines operations for draw sessions
type SessionRepository interface {
	Repository[models.Session, models.SessionFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateStatus(ctx context.Context, id uint, status models.SessionStatus) error
	MarkFinalized(ctx context.Context, id uint, fin models.SessionFinalization) error
}

// SessionCardRepository defines operations for the cards drawn in a session
type SessionCardRepository interface {
	Repository[models.SessionCard, models.SessionCardFilter]
	CountBySession(ctx context.Context, sessionID uint) (int64, error)
	ListBySession(ctx context.Context, sessionID uint) ([]*models.SessionCard, error)
}

// DailyOutcomeRepository defines operations for the one-official-result-per-day ledger
type DailyOutcomeRepository interface {
	Repository[models.DailyOutcome, models.DailyOutcomeFilter]
	ByOwnerAndDate(ctx context.Context, ownerKey string, date time.Time) (*models.DailyOutcome, error)
	BySessionID(ctx context.Context, sessionID uint) (*models.DailyOutcome, error)
	ListDatesByOwner(ctx context.Context, ownerKey string) ([]time.Time, error)
	CountByOwner(ctx context.Context, ownerKey string) (int64, error)
}
