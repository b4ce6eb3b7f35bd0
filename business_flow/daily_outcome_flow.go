package businessflow

import (
	"context"
	"log/slog"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
)

// DailyOutcomeFlow reads the one-official-result-per-day ledger
type DailyOutcomeFlow interface {
	GetTodayOutcome(ctx context.Context, req *dto.OwnerRequest, metadata *ClientMetadata) (*dto.DailyOutcomeResponse, error)
	GetSessionDailyOutcome(ctx context.Context, req *dto.GetSessionRequest, metadata *ClientMetadata) (*dto.DailyOutcomeResponse, error)
}

// DailyOutcomeFlowImpl implements DailyOutcomeFlow
type DailyOutcomeFlowImpl struct {
	sessionRepo repository.SessionRepository
	dailyRepo   repository.DailyOutcomeRepository
	clock       Clock
	logger      *slog.Logger
}

func NewDailyOutcomeFlow(sessionRepo repository.SessionRepository, dailyRepo repository.DailyOutcomeRepository, clock Clock, logger *slog.Logger) DailyOutcomeFlow {
	return &DailyOutcomeFlowImpl{sessionRepo: sessionRepo, dailyRepo: dailyRepo, clock: clock, logger: logger}
}

// GetTodayOutcome returns the owner's official result of the current UTC day, if any
func (f *DailyOutcomeFlowImpl) GetTodayOutcome(ctx context.Context, req *dto.OwnerRequest, metadata *ClientMetadata) (resp *dto.DailyOutcomeResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "GET_TODAY_OUTCOME_FAILED", "Failed to get today's outcome", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	outcome, err := f.dailyRepo.ByOwnerAndDate(ctx, ownerKey, utils.StartOfUTCDay(f.clock.Now()))
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return &dto.DailyOutcomeResponse{}, nil
	}

	session, err := f.sessionRepo.ByID(ctx, outcome.SessionID)
	if err != nil {
		return nil, err
	}
	sessionUUID := uuid.Nil
	if session != nil {
		sessionUUID = session.UUID
	}

	return &dto.DailyOutcomeResponse{DailyOutcome: toDailyOutcomeDTO(outcome, sessionUUID)}, nil
}

// GetSessionDailyOutcome returns the ledger row produced by a session, if it was official
func (f *DailyOutcomeFlowImpl) GetSessionDailyOutcome(ctx context.Context, req *dto.GetSessionRequest, metadata *ClientMetadata) (resp *dto.DailyOutcomeResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "GET_SESSION_OUTCOME_FAILED", "Failed to get session outcome", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	session, err := loadOwnedSession(ctx, f.sessionRepo, req.SessionID, ownerKey)
	if err != nil {
		return nil, err
	}

	var outcome *models.DailyOutcome
	if session.IsOfficialDaily {
		outcome, err = f.dailyRepo.BySessionID(ctx, session.ID)
		if err != nil {
			return nil, err
		}
	}

	return &dto.DailyOutcomeResponse{DailyOutcome: toDailyOutcomeDTO(outcome, session.UUID)}, nil
}
